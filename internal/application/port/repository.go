package port

import (
	"context"
	"errors"

	"cashcarry/internal/domain/model"
)

// ErrNotFound store has no record for the key
var ErrNotFound = errors.New("not found")

// PositionLedger durable per-user position list.
// An unknown user loads as an empty slice.
type PositionLedger interface {
	Append(ctx context.Context, user string, pos model.Position) error
	LoadAll(ctx context.Context, user string) ([]model.Position, error)
	// ReplaceAll rewrites the user's whole ledger; nil clears it
	ReplaceAll(ctx context.Context, user string, positions []model.Position) error
}

// CredentialStore opaque encrypted credential blobs keyed by user
type CredentialStore interface {
	PutCredentials(ctx context.Context, user string, blob []byte) error
	GetCredentials(ctx context.Context, user string) ([]byte, error)
}

// Storage a backend serving both ledger and credentials
type Storage interface {
	PositionLedger
	CredentialStore
	Close() error
}
