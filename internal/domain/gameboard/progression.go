package gameboard

import (
	"errors"
	"fmt"
)

// Phase is the progression phase of one player's move.
// A player is always in exactly one phase; Idle is both initial and terminal,
// so the machine is re-entrant indefinitely.
type Phase string

const (
	// PhaseIdle - no move in progress.
	PhaseIdle Phase = "idle"
	// PhaseAwaitingRoll - a move has been consumed, waiting for the roll.
	PhaseAwaitingRoll Phase = "awaiting_roll"
	// PhaseResolving - the roll was submitted, rewards are being applied.
	PhaseResolving Phase = "resolving"
)

// ErrInvalidTransition is returned for out-of-order phase transitions.
var ErrInvalidTransition = errors.New("gameboard: invalid phase transition")

// BoardStep is how far a player advances after each resolved move.
const BoardStep = 1

// Progression tracks the move phase for one player. Transitions:
//
//	Idle -> AwaitingRoll  (move consumed)
//	AwaitingRoll -> Resolving  (roll submitted)
//	Resolving -> Idle  (rewards applied, position advanced)
type Progression struct {
	PlayerID string
	Phase    Phase
}

// NewProgression creates an idle progression for a player.
func NewProgression(playerID string) *Progression {
	return &Progression{PlayerID: playerID, Phase: PhaseIdle}
}

// BeginMove transitions Idle -> AwaitingRoll. Move availability is checked
// by the caller against the player state before this transition.
func (p *Progression) BeginMove() error {
	if p.Phase != PhaseIdle {
		return fmt.Errorf("%w: BeginMove from %s", ErrInvalidTransition, p.Phase)
	}
	p.Phase = PhaseAwaitingRoll
	return nil
}

// SubmitRoll transitions AwaitingRoll -> Resolving.
func (p *Progression) SubmitRoll() error {
	if p.Phase != PhaseAwaitingRoll {
		return fmt.Errorf("%w: SubmitRoll from %s", ErrInvalidTransition, p.Phase)
	}
	p.Phase = PhaseResolving
	return nil
}

// Complete transitions Resolving -> Idle after rewards were applied and the
// board position advanced.
func (p *Progression) Complete() error {
	if p.Phase != PhaseResolving {
		return fmt.Errorf("%w: Complete from %s", ErrInvalidTransition, p.Phase)
	}
	p.Phase = PhaseIdle
	return nil
}

// Abort resets the machine to Idle from any phase. Used when a move fails
// before commit; the caller guarantees no partial state was persisted.
func (p *Progression) Abort() {
	p.Phase = PhaseIdle
}

// IsIdle reports whether no move is in progress.
func (p *Progression) IsIdle() bool {
	return p.Phase == PhaseIdle
}
