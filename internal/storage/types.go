package storage

import (
	"context"
	"errors"

	"likhtar/internal/registry"
)

var ErrDisabled = errors.New("storage disabled")

// Store is the persistence API used by the subscription service.
// All methods are best-effort from the caller's point of view: errors are
// logged, never propagated into registry state.
type Store interface {
	// SavePushSub upserts a push subscription by endpoint.
	SavePushSub(ctx context.Context, s registry.PushSub) error
	// DeletePushSub removes a push subscription; returns whether a row existed.
	DeletePushSub(ctx context.Context, endpoint string) (bool, error)
	// ListPushSubs returns every stored push subscription.
	ListPushSubs(ctx context.Context) ([]registry.PushSub, error)

	// UpsertChatSub creates or requeues a chat subscriber.
	UpsertChatSub(ctx context.Context, s registry.ChatSub) error
	// DeleteChatSub removes a chat subscriber; returns whether a row existed.
	DeleteChatSub(ctx context.Context, id int64) (bool, error)
	// ListChatSubs returns every stored chat subscriber.
	ListChatSubs(ctx context.Context) ([]registry.ChatSub, error)

	Close() error
}
