// Package notify is an optional outer adapter that turns Change Event Bus
// events into desktop notifications. It is not part of the core — it is a
// Subscriber like any other, wired in by the CLI layer that wants them.
package notify

import (
	toast "git.sr.ht/~jackmordaunt/go-toast/v2"
	"github.com/hkdb/mailcache/internal/events"
	"github.com/hkdb/mailcache/internal/logging"
)

// Desktop posts an OS notification for MESSAGE_ADDED events. AppID is the
// identifier shown as the notification's source application.
type Desktop struct {
	AppID string
}

// OnEvent implements events.Subscriber.
func (d *Desktop) OnEvent(e events.Event) {
	if e.Kind != events.MessageAdded {
		return
	}
	log := logging.WithComponent("notify")

	title := "New message"
	if dirName, ok := e.Item.(string); ok && dirName != "" {
		title = "New message: " + dirName
	}

	n := toast.Notification{
		AppID:   d.AppID,
		Title:   title,
		Message: "A new message was cached for " + e.Source,
	}
	if err := n.Push(); err != nil {
		log.Warn().Err(err).Msg("failed to push desktop notification")
	}
}
