package vault

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashcarry/internal/application/port"
)

type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStore() *memStore { return &memStore{blobs: map[string][]byte{}} }

func (m *memStore) PutCredentials(ctx context.Context, user string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[user] = append([]byte(nil), blob...)
	return nil
}

func (m *memStore) GetCredentials(ctx context.Context, user string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[user]
	if !ok {
		return nil, port.ErrNotFound
	}
	return b, nil
}

func mustKey(t *testing.T) []byte {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	return key
}

func TestVaultRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v, err := New(store, mustKey(t))
	require.NoError(t, err)

	require.NoError(t, v.Save(ctx, "alice", "key-1", "secret-1"))

	key, secret, ok := v.Load(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, "key-1", key)
	assert.Equal(t, "secret-1", secret)

	assert.NotContains(t, string(store.blobs["alice"]), "secret-1")

	sess := v.Session(ctx, "alice")
	require.NotNil(t, sess.Credentials)
	assert.True(t, sess.Credentials.Valid())
}

func TestVaultMissingUser(t *testing.T) {
	v, err := New(newMemStore(), mustKey(t))
	require.NoError(t, err)

	_, _, ok := v.Load(context.Background(), "nobody")
	assert.False(t, ok)
	assert.Nil(t, v.Session(context.Background(), "nobody").Credentials)
}

func TestVaultWrongKey(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v1, _ := New(store, mustKey(t))
	require.NoError(t, v1.Save(ctx, "alice", "k", "s"))

	v2, _ := New(store, mustKey(t))
	key, secret, ok := v2.Load(ctx, "alice")
	assert.False(t, ok)
	assert.Empty(t, key)
	assert.Empty(t, secret)
}

func TestVaultBlobBoundToUser(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v, _ := New(store, mustKey(t))
	require.NoError(t, v.Save(ctx, "alice", "k", "s"))

	store.blobs["mallory"] = store.blobs["alice"]
	_, _, ok := v.Load(ctx, "mallory")
	assert.False(t, ok)
}

func TestVaultCorruptBlob(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v, _ := New(store, mustKey(t))

	store.blobs["alice"] = []byte("short")
	_, _, ok := v.Load(ctx, "alice")
	assert.False(t, ok)

	require.NoError(t, v.Save(ctx, "bob", "k", "s"))
	store.blobs["bob"][len(store.blobs["bob"])-1] ^= 0xff
	_, _, ok = v.Load(ctx, "bob")
	assert.False(t, ok)
}

func TestVaultRejectsEmpty(t *testing.T) {
	v, _ := New(newMemStore(), mustKey(t))
	assert.Error(t, v.Save(context.Background(), "alice", "", "s"))
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New(newMemStore(), []byte("short"))
	assert.Error(t, err)
}

func TestLoadKeyFromEnv(t *testing.T) {
	key := mustKey(t)
	t.Setenv("TEST_CARRY_KEY", EncodeKey(key))

	got, err := LoadKey(context.Background(), KeySource{EnvVar: "TEST_CARRY_KEY"})
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestLoadKeyBadEnv(t *testing.T) {
	t.Setenv("TEST_CARRY_KEY", EncodeKey([]byte("too short")))
	_, err := LoadKey(context.Background(), KeySource{EnvVar: "TEST_CARRY_KEY"})
	assert.Error(t, err)
}

func TestLoadKeyGenerated(t *testing.T) {
	t.Setenv("TEST_CARRY_KEY", "")
	got, err := LoadKey(context.Background(), KeySource{EnvVar: "TEST_CARRY_KEY"})
	require.NoError(t, err)
	assert.Len(t, got, KeySize)
}
