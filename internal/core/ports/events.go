package ports

import (
	"context"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// EventStream is responsible for emitting container lifecycle events for
// resources this wrapper owns.
type EventStream interface {
	// Subscribe starts watching for events and returns a read-only channel.
	// The channel closes when ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan domain.ContainerEvent, error)
}
