package domain

import "fmt"

// Phase is the deployment lifecycle state of an app.
//
// The happy path is NotBuilt -> Building -> Built -> Running, after which the
// entry process either stops cleanly or crashes. Terminal phases can be
// rebuilt or relaunched; the wrapper itself never restarts anything.
type Phase string

const (
	PhaseNotBuilt Phase = "not_built"
	PhaseBuilding Phase = "building"
	PhaseBuilt    Phase = "built"
	PhaseRunning  Phase = "running"
	PhaseStopped  Phase = "stopped"
	PhaseCrashed  Phase = "crashed"
)

// Terminal reports whether the phase marks a finished entry process.
func (p Phase) Terminal() bool {
	return p == PhaseStopped || p == PhaseCrashed
}

// CanTransition reports whether moving from p to next is a valid lifecycle
// step. A failed build falls back to NotBuilt; terminal phases allow a
// relaunch (new container instance) or a rebuild.
func (p Phase) CanTransition(next Phase) bool {
	switch p {
	case PhaseNotBuilt:
		return next == PhaseBuilding
	case PhaseBuilding:
		return next == PhaseBuilt || next == PhaseNotBuilt
	case PhaseBuilt:
		return next == PhaseRunning || next == PhaseBuilding
	case PhaseRunning:
		return next == PhaseStopped || next == PhaseCrashed
	case PhaseStopped, PhaseCrashed:
		return next == PhaseRunning || next == PhaseBuilding
	default:
		return false
	}
}

// Transition returns next if the step from p is valid and an
// ErrInvalidTransition error otherwise. Callers supply the phase they
// believe is current so races surface as errors instead of silent skips.
func (p Phase) Transition(next Phase) (Phase, error) {
	if !p.CanTransition(next) {
		return p, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p, next)
	}
	return next, nil
}
