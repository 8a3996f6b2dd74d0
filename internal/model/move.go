// Package model defines the core domain types for iterated prisoner's dilemma
// matches: moves, agent configurations, round records and batch tasks.
//
// Types here are plain values. They carry no behavior beyond validation and
// formatting so that every other package can share them without cycles.
package model

// Move is one of the two legal per-round actions.
type Move string

const (
	// MoveNone is the "no decision" sentinel returned by a decision provider
	// that could not produce a move. It is never written to a round record.
	MoveNone      Move = ""
	MoveCooperate Move = "C"
	MoveDefect    Move = "D"
)

// Valid reports whether m is Cooperate or Defect.
func (m Move) Valid() bool {
	return m == MoveCooperate || m == MoveDefect
}

// String returns the single-character symbol, or "-" for MoveNone.
func (m Move) String() string {
	if m == MoveNone {
		return "-"
	}
	return string(m)
}

// Name returns the full uppercase name of the move.
func (m Move) Name() string {
	switch m {
	case MoveCooperate:
		return "COOPERATE"
	case MoveDefect:
		return "DEFECT"
	default:
		return ""
	}
}
