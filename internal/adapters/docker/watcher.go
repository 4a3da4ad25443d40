package docker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// Subscribe streams lifecycle events for containers this wrapper owns. The
// daemon filters by type and ownership label; only start/stop/die survive
// the translation to domain events. The returned channel closes when ctx is
// cancelled or the daemon stream ends.
func (a *Adapter) Subscribe(ctx context.Context) (<-chan domain.ContainerEvent, error) {
	f := filters.NewArgs(
		filters.Arg("type", "container"),
		filters.Arg("label", domain.LabelManaged+"=true"),
	)
	msgs, errs := a.cli.Events(ctx, types.EventsOptions{Filters: f})

	out := make(chan domain.ContainerEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if !ok {
					return
				}
				if err != nil && !errors.Is(err, context.Canceled) {
					a.logger.Error().Err(err).Msg("Docker event stream failed")
				}
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev, ok := toContainerEvent(msg)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func toContainerEvent(msg events.Message) (domain.ContainerEvent, bool) {
	switch msg.Action {
	case events.ActionStart, events.ActionStop, events.ActionDie:
	default:
		return domain.ContainerEvent{}, false
	}

	ev := domain.ContainerEvent{
		ContainerID: msg.Actor.ID,
		App:         msg.Actor.Attributes[domain.LabelApp],
		Action:      string(msg.Action),
	}
	if msg.TimeNano != 0 {
		ev.Time = time.Unix(0, msg.TimeNano)
	} else {
		ev.Time = time.Unix(msg.Time, 0)
	}
	if msg.Action == events.ActionDie {
		if code, err := strconv.Atoi(msg.Actor.Attributes["exitCode"]); err == nil {
			ev.ExitCode = code
		}
	}
	return ev, true
}
