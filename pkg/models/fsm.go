package models

import (
	"fmt"
)

// PipelineState is a state of the labelling pipeline
type PipelineState string

const (
	StateInit         PipelineState = "init"          // Identity resolved, progress being read
	StateLoadingInput PipelineState = "loading_input" // Input dataset being read in full
	StateProcessing   PipelineState = "processing"    // Per-index correct/append/save loop
	StateDone         PipelineState = "done"          // Every index processed
	StateFailed       PipelineState = "failed"        // Fatal error, progress left at last durable index
	StateInterrupted  PipelineState = "interrupted"   // Stopped by signal at an index boundary
)

// validTransitions maps from-state to allowed to-states
var validTransitions = map[PipelineState]map[PipelineState]bool{
	StateInit: {
		StateLoadingInput: true, // progress loaded
		StateFailed:       true, // corrupt progress record
	},
	StateLoadingInput: {
		StateProcessing: true, // dataset read, work remaining
		StateDone:       true, // start index >= dataset length
		StateFailed:     true, // missing or malformed input
	},
	StateProcessing: {
		StateDone:        true,
		StateFailed:      true,
		StateInterrupted: true,
	},
	// Terminal states
	StateDone:        {},
	StateFailed:      {},
	StateInterrupted: {},
}

// ValidateTransition checks if a pipeline state transition is valid
func ValidateTransition(from, to PipelineState) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminalState returns true if no further transitions are allowed
func IsTerminalState(state PipelineState) bool {
	return state == StateDone || state == StateFailed || state == StateInterrupted
}
