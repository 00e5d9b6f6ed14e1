// Package secrets resolves configuration values stored in the OS keyring.
package secrets

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/zalando/go-keyring"
)

// Resolve returns value unchanged unless it has the form "keyring:<name>",
// in which case the secret stored under config.KeyringService and name is
// returned instead.
func Resolve(value string) (string, error) {
	name, ok := strings.CutPrefix(value, config.SecretKeyringPrefix)
	if !ok {
		return value, nil
	}
	if name == "" {
		return "", fmt.Errorf("%s: empty keyring entry name", config.ErrSecretResolve)
	}
	secret, err := keyring.Get(config.KeyringService, name)
	if err != nil {
		return "", fmt.Errorf("%s: %q: %w", config.ErrSecretResolve, name, err)
	}
	slog.Debug("Secret resolved from keyring",
		config.LogKeyComponent, config.CompSecrets,
		config.LogKeyKey, name)
	return secret, nil
}

// ResolveSettings replaces every keyring reference in s by its secret.
func ResolveSettings(s *config.Settings) error {
	for _, field := range []*string{&s.Database.DSN, &s.Redis.URL, &s.Admin.Password} {
		v, err := Resolve(*field)
		if err != nil {
			return err
		}
		*field = v
	}
	return nil
}

// Store saves secret in the keyring under name, for later "keyring:<name>"
// references.
func Store(name, secret string) error {
	if err := keyring.Set(config.KeyringService, name, secret); err != nil {
		return fmt.Errorf("%s: %q: %w", config.ErrSecretResolve, name, err)
	}
	return nil
}
