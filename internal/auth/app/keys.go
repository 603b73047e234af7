package app

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/triage/pkg/cryptox"
)

// LoadSigningSecret returns the HMAC secret for token signing.
//
// Sources, in order:
//   - AUTH_SECRET_KEY
//   - the file named by AUTH_SECRET_KEY_FILE (trailing whitespace trimmed)
//   - in dev and test only, a random secret generated for this process.
//     Every token becomes invalid when the service restarts.
func LoadSigningSecret(cfg Config, logger *slog.Logger) ([]byte, error) {
	if cfg.SecretKey != "" {
		return []byte(cfg.SecretKey), nil
	}

	if cfg.SecretKeyFile != "" {
		raw, err := os.ReadFile(cfg.SecretKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret key file: %w", err)
		}
		secret := bytes.TrimSpace(raw)
		if len(secret) == 0 {
			return nil, fmt.Errorf("secret key file %s is empty", cfg.SecretKeyFile)
		}
		logger.Info("signing secret loaded from file", "path", cfg.SecretKeyFile)
		return secret, nil
	}

	if !cfg.IsDevelopment() {
		return nil, fmt.Errorf("no signing secret configured")
	}

	generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing secret: %w", err)
	}
	logger.Warn("AUTH_SECRET_KEY not set, using an ephemeral signing secret", "env", cfg.Env)
	return []byte(generated), nil
}
