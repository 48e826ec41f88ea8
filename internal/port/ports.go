// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/spendlens/spendlens-go/internal/domain"
)

// TransactionSource materializes the current ledger from a backing feed.
type TransactionSource interface {
	Snapshot(ctx context.Context) ([]domain.Transaction, error)
}

// TransactionSink accepts generated transactions, e.g. the dev seeding
// endpoint writing into the feed database.
type TransactionSink interface {
	Insert(ctx context.Context, t domain.Transaction) error
}

// ChatCompleter turns a message thread into a model completion.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (*domain.CompletionResponse, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
