// Package session holds per-user conversation history.
package session

import "context"

const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role string
	Text string
}

// Store keeps the ordered turns of each user's session.
type Store interface {
	// History returns the user's turns, oldest first. A user without a
	// session gets an empty slice and no error.
	History(ctx context.Context, userID string) ([]Turn, error)
	// Append adds turns to the end of the user's session atomically.
	Append(ctx context.Context, userID string, turns ...Turn) error
	// Reset drops the user's session.
	Reset(ctx context.Context, userID string) error
}

// Compressor reduces a list of turns before rendering.
type Compressor interface {
	Compress(turns []Turn) []Turn
}

// SimpleCompressor keeps only the last MaxTurns turns. Zero keeps everything.
type SimpleCompressor struct {
	MaxTurns int
}

func (c *SimpleCompressor) Compress(turns []Turn) []Turn {
	if c.MaxTurns <= 0 || len(turns) <= c.MaxTurns {
		return turns
	}
	return turns[len(turns)-c.MaxTurns:]
}
