package ledger

import (
	"context"

	id "certflow/pkg/domain"

	"github.com/google/uuid"
)

// Store is the append-only persistence behind the ledger.
type Store interface {
	Append(ctx context.Context, entry Entry) (uuid.UUID, error)
	// ListForRequest returns the request's entries oldest-first.
	ListForRequest(ctx context.Context, requestID id.RequestID) ([]Entry, error)
}
