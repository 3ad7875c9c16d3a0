package mailmime

import (
	"strings"
	"unicode/utf8"

	_ "github.com/emersion/go-message/charset" // registers the full IANA charset set with go-message's decoder
	"github.com/hkdb/mailcache/internal/logging"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

// decodeBytes converts content from declaredCharset to UTF-8. An empty or
// UTF-8 declared charset is validated rather than trusted outright. When
// declaredCharset is empty, htmlHint lets the caller supply the content so
// a <meta charset> tag can steer auto-detection.
func decodeBytes(content []byte, declaredCharset string, htmlHint []byte) string {
	log := logging.WithComponent("mailmime")

	if declaredCharset == "" || strings.EqualFold(declaredCharset, "utf-8") || strings.EqualFold(declaredCharset, "us-ascii") {
		if utf8.Valid(content) {
			return string(content)
		}
		enc, name, _ := charset.DetermineEncoding(contentOrHint(content, htmlHint), "text/html")
		if decoded, err := enc.NewDecoder().Bytes(content); err == nil {
			log.Debug().Str("detected", name).Msg("auto-detected charset for mislabeled UTF-8 content")
			return string(decoded)
		}
		return string(content)
	}

	enc, err := htmlindex.Get(declaredCharset)
	if err != nil {
		log.Debug().Str("charset", declaredCharset).Msg("unknown declared charset, falling back to raw bytes")
		return string(content)
	}
	decoded, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		log.Debug().Err(err).Str("charset", declaredCharset).Msg("charset decode failed, falling back to raw bytes")
		return string(content)
	}
	return string(decoded)
}

func contentOrHint(content, hint []byte) []byte {
	if len(hint) > 0 {
		return hint
	}
	return content
}
