package domain

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Phase }{
		{PhaseNotBuilt, PhaseBuilding},
		{PhaseBuilding, PhaseBuilt},
		{PhaseBuilding, PhaseNotBuilt}, // failed build falls back
		{PhaseBuilt, PhaseRunning},
		{PhaseBuilt, PhaseBuilding}, // rebuild
		{PhaseRunning, PhaseStopped},
		{PhaseRunning, PhaseCrashed},
		{PhaseStopped, PhaseRunning}, // relaunch
		{PhaseStopped, PhaseBuilding},
		{PhaseCrashed, PhaseRunning},
		{PhaseCrashed, PhaseBuilding},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to Phase }{
		{PhaseNotBuilt, PhaseRunning}, // cannot run what was never built
		{PhaseNotBuilt, PhaseBuilt},
		{PhaseBuilding, PhaseRunning},
		{PhaseBuilt, PhaseStopped},
		{PhaseRunning, PhaseRunning},
		{PhaseRunning, PhaseBuilding}, // stop first
		{PhaseStopped, PhaseStopped},
		{PhaseCrashed, PhaseBuilt},
		{Phase("bogus"), PhaseRunning},
	}
	for _, tr := range denied {
		if tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be denied", tr.from, tr.to)
		}
	}
}

func TestTransition(t *testing.T) {
	p, err := PhaseBuilt.Transition(PhaseRunning)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if p != PhaseRunning {
		t.Fatalf("phase = %s, want %s", p, PhaseRunning)
	}

	p, err = PhaseNotBuilt.Transition(PhaseRunning)
	if err == nil {
		t.Fatal("Transition returned nil, want error")
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
	if p != PhaseNotBuilt {
		t.Fatalf("phase changed to %s on invalid transition", p)
	}
}

func TestTerminal(t *testing.T) {
	for _, p := range []Phase{PhaseStopped, PhaseCrashed} {
		if !p.Terminal() {
			t.Errorf("%s should be terminal", p)
		}
	}
	for _, p := range []Phase{PhaseNotBuilt, PhaseBuilding, PhaseBuilt, PhaseRunning} {
		if p.Terminal() {
			t.Errorf("%s should not be terminal", p)
		}
	}
}

func TestGracefulExit(t *testing.T) {
	for _, code := range []int{0, 130, 143} {
		if !GracefulExit(code) {
			t.Errorf("exit code %d should be graceful", code)
		}
	}
	for _, code := range []int{1, 2, 127, 137, 255} {
		if GracefulExit(code) {
			t.Errorf("exit code %d should not be graceful", code)
		}
	}
}
