package vault

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/chacha20poly1305"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"
)

// KeySize required process key length
const KeySize = chacha20poly1305.KeySize

type secretPayload struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// Vault encrypts exchange credentials at rest with XChaCha20-Poly1305.
// Blob layout: nonce || ciphertext, the user name is bound as associated data.
type Vault struct {
	store port.CredentialStore
	aead  cipher.AEAD
}

func New(store port.CredentialStore, key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Vault{store: store, aead: aead}, nil
}

// Save encrypts and stores the key pair, replacing any previous one.
func (v *Vault) Save(ctx context.Context, user, apiKey, apiSecret string) error {
	if apiKey == "" || apiSecret == "" {
		return errors.New("api key and secret are required")
	}
	plain, err := json.Marshal(secretPayload{APIKey: apiKey, APISecret: apiSecret})
	if err != nil {
		return err
	}

	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plain)+chacha20poly1305.Overhead)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	blob := v.aead.Seal(nonce, nonce, plain, []byte(user))
	return v.store.PutCredentials(ctx, user, blob)
}

// Load returns ok=false when nothing is stored or the blob cannot be decrypted.
func (v *Vault) Load(ctx context.Context, user string) (apiKey, apiSecret string, ok bool) {
	blob, err := v.store.GetCredentials(ctx, user)
	if err != nil {
		if !errors.Is(err, port.ErrNotFound) {
			log.Error().Err(err).Str("user", user).Msg("credential lookup failed")
		}
		return "", "", false
	}

	ns := v.aead.NonceSize()
	if len(blob) < ns+chacha20poly1305.Overhead {
		log.Error().Str("user", user).Int("len", len(blob)).Msg("credential blob truncated")
		return "", "", false
	}
	plain, err := v.aead.Open(nil, blob[:ns], blob[ns:], []byte(user))
	if err != nil {
		log.Error().Err(err).Str("user", user).Msg("credential decryption failed, key changed?")
		return "", "", false
	}

	var p secretPayload
	if err := json.Unmarshal(plain, &p); err != nil || p.APIKey == "" || p.APISecret == "" {
		log.Error().Str("user", user).Msg("credential payload malformed")
		return "", "", false
	}
	return p.APIKey, p.APISecret, true
}

// Session builds the engine session of a user, with credentials when available.
func (v *Vault) Session(ctx context.Context, user string) model.Session {
	sess := model.Session{User: user}
	if key, secret, ok := v.Load(ctx, user); ok {
		sess.Credentials = &model.Credentials{APIKey: key, APISecret: secret}
	}
	return sess
}
