package registration

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseSubmitting
	PhaseAwaitingConfirmation
	PhasePolling
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseConnecting:
		return "Connecting"
	case PhaseSubmitting:
		return "Submitting"
	case PhaseAwaitingConfirmation:
		return "AwaitingConfirmation"
	case PhasePolling:
		return "Polling"
	case PhaseComplete:
		return "Complete"
	case PhaseFailed:
		return "Failed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Terminal reports whether an attempt in phase p has ended.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// Status is a snapshot of the orchestrator.
type Status struct {
	Phase Phase
	// Err is the failure reason when Phase is PhaseFailed.
	Err     error
	Attempt string
	TxHash  common.Hash
	// Remaining is the last capacity reading, valid when HasReading is set.
	Remaining  uint64
	HasReading bool
}

func (s Status) String() string {
	if s.Phase == PhaseFailed && s.Err != nil {
		return fmt.Sprintf("%s(%v)", s.Phase, s.Err)
	}
	return s.Phase.String()
}
