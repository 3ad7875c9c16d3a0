// Package credentials provides the default Credential source (spec §6):
// given an account id, return the username, host, port, SSL flag, and
// stored mode needed to open a Store, reading the account's secret from
// the OS keyring.
package credentials

import (
	"encoding/json"
	"fmt"

	"github.com/hkdb/mailcache/internal/logging"
	"github.com/hkdb/mailcache/internal/mode"
	"github.com/rs/zerolog"
	gokeyring "github.com/zalando/go-keyring"
)

const serviceName = "mailcache"

// Credentials is what the core reads exactly once per store open (spec
// §6). Password is retrieved from the OS keyring; everything else is
// non-secret account metadata stored alongside it.
type Credentials struct {
	AccountID string
	Username  string
	Host      string
	Port      int
	SSL       bool
	Password  string
	Mode      mode.Mode
}

// metadata is the non-secret portion of Credentials, marshaled to JSON and
// stored in the keyring entry "<accountID>.meta".
type metadata struct {
	Username string    `json:"username"`
	Host     string    `json:"host"`
	Port     int       `json:"port"`
	SSL      bool      `json:"ssl"`
	Mode     mode.Mode `json:"mode"`
}

// Source resolves an account id into connection credentials. The Registry
// does not use it; cmd/mailcache-sync reads one before opening a store.
type Source interface {
	Get(accountID string) (Credentials, error)
	Put(creds Credentials) error
}

// KeyringSource is the default Source, backed by the OS keyring via
// github.com/zalando/go-keyring.
type KeyringSource struct {
	log zerolog.Logger
}

// NewKeyringSource creates a KeyringSource.
func NewKeyringSource() *KeyringSource {
	return &KeyringSource{log: logging.WithComponent("credentials")}
}

// Get resolves accountID into full Credentials, reading both the metadata
// blob and the password from the OS keyring.
func (s *KeyringSource) Get(accountID string) (Credentials, error) {
	metaJSON, err := gokeyring.Get(serviceName, metaKey(accountID))
	if err != nil {
		return Credentials{}, fmt.Errorf("read credential metadata for %q: %w", accountID, err)
	}
	var m metadata
	if err := json.Unmarshal([]byte(metaJSON), &m); err != nil {
		return Credentials{}, fmt.Errorf("decode credential metadata for %q: %w", accountID, err)
	}

	password, err := gokeyring.Get(serviceName, passwordKey(accountID))
	if err != nil {
		s.log.Warn().Err(err).Str("account", accountID).Msg("no password in keyring for account")
	}

	return Credentials{
		AccountID: accountID,
		Username:  m.Username,
		Host:      m.Host,
		Port:      m.Port,
		SSL:       m.SSL,
		Password:  password,
		Mode:      m.Mode,
	}, nil
}

// Put stores creds in the OS keyring: a JSON metadata blob and the
// password, under separate keys, so listing accounts never exposes the
// password value.
func (s *KeyringSource) Put(creds Credentials) error {
	m := metadata{Username: creds.Username, Host: creds.Host, Port: creds.Port, SSL: creds.SSL, Mode: creds.Mode}
	blob, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode credential metadata for %q: %w", creds.AccountID, err)
	}
	if err := gokeyring.Set(serviceName, metaKey(creds.AccountID), string(blob)); err != nil {
		return fmt.Errorf("store credential metadata for %q: %w", creds.AccountID, err)
	}
	if creds.Password != "" {
		if err := gokeyring.Set(serviceName, passwordKey(creds.AccountID), creds.Password); err != nil {
			return fmt.Errorf("store password for %q: %w", creds.AccountID, err)
		}
	}
	return nil
}

func metaKey(accountID string) string     { return accountID + ".meta" }
func passwordKey(accountID string) string { return accountID + ".password" }
