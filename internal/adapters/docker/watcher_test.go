package docker

import (
	"context"
	"testing"
	"time"

	"github.com/docker/docker/api/types/events"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

func TestToContainerEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  events.Message
		want domain.ContainerEvent
		keep bool
	}{
		{
			name: "die with exit code",
			msg: events.Message{
				Action: events.ActionDie,
				Actor: events.Actor{
					ID: testContainerID,
					Attributes: map[string]string{
						domain.LabelApp: "tilecraft",
						"exitCode":      "137",
					},
				},
				TimeNano: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC).UnixNano(),
			},
			want: domain.ContainerEvent{
				ContainerID: testContainerID,
				App:         "tilecraft",
				Action:      "die",
				ExitCode:    137,
			},
			keep: true,
		},
		{
			name: "start",
			msg: events.Message{
				Action: events.ActionStart,
				Actor:  events.Actor{ID: testContainerID, Attributes: map[string]string{domain.LabelApp: "tilecraft"}},
				Time:   time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC).Unix(),
			},
			want: domain.ContainerEvent{ContainerID: testContainerID, App: "tilecraft", Action: "start"},
			keep: true,
		},
		{
			name: "irrelevant action",
			msg:  events.Message{Action: events.ActionCreate, Actor: events.Actor{ID: testContainerID}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := toContainerEvent(tt.msg)
			if ok != tt.keep {
				t.Fatalf("kept = %v, want %v", ok, tt.keep)
			}
			if !tt.keep {
				return
			}
			if got.ContainerID != tt.want.ContainerID || got.App != tt.want.App ||
				got.Action != tt.want.Action || got.ExitCode != tt.want.ExitCode {
				t.Errorf("event = %+v, want %+v", got, tt.want)
			}
			if got.Time.IsZero() {
				t.Error("event time was not set")
			}
		})
	}
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	cli := &fakeClient{
		events:    make(chan events.Message, 4),
		eventErrs: make(chan error, 1),
	}
	a := newTestAdapter(cli)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := a.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	cli.events <- events.Message{
		Action: events.ActionDie,
		Actor: events.Actor{
			ID:         testContainerID,
			Attributes: map[string]string{domain.LabelApp: "tilecraft", "exitCode": "0"},
		},
		Time: time.Now().Unix(),
	}

	select {
	case ev := <-ch:
		if ev.Action != "die" || ev.App != "tilecraft" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event arrived")
	}

	cancel()
	select {
	case _, open := <-ch:
		if open {
			t.Error("channel still open after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancellation")
	}
}
