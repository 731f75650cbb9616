package vault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// KeySource where to look for the process key
type KeySource struct {
	EnvVar        string // base64 encoded key
	GCPProjectID  string // optional Secret Manager fallback
	GCPSecretName string
}

// LoadKey tries the environment, then Secret Manager, then generates a fresh key.
// A generated key is ephemeral: blobs written with it are unreadable after a restart.
func LoadKey(ctx context.Context, src KeySource) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(src.EnvVar)); v != "" {
		key, err := DecodeKey(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.EnvVar, err)
		}
		return key, nil
	}

	if src.GCPProjectID != "" && src.GCPSecretName != "" {
		sm, err := NewGCPSecretManager(ctx, src.GCPProjectID)
		if err != nil {
			return nil, err
		}
		defer sm.Close()

		v, err := sm.GetSecret(ctx, src.GCPSecretName)
		if err != nil {
			return nil, err
		}
		key, err := DecodeKey(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("secret %s: %w", src.GCPSecretName, err)
		}
		log.Info().Str("secret", src.GCPSecretName).Msg("vault key loaded from secret manager")
		return key, nil
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	log.Warn().
		Str("env", src.EnvVar).
		Msg("no vault key configured, generated an ephemeral one; stored credentials will not survive a restart")
	return key, nil
}

// DecodeKey parses a base64 key and checks its length.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncodeKey base64 form accepted by DecodeKey
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}
