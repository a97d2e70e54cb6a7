package chat

import (
	"fmt"

	"github.com/pkg/errors"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	ErrEmptyTranscript = errors.New("transcript must contain at least one turn")
	ErrInvalidRole     = errors.New("turn role must be user or assistant")
)

// Valid reports whether the role is one the relay accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message of a conversation.
type Turn struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered conversation, oldest turn first.
type Transcript []Turn

// Validate checks the invariants the relay relies on. Turn-taking is not enforced.
func (t Transcript) Validate() error {
	if len(t) == 0 {
		return ErrEmptyTranscript
	}
	for i, turn := range t {
		if !turn.Role.Valid() {
			return &TurnError{Index: i, Err: ErrInvalidRole}
		}
	}
	return nil
}

// TurnError pins a validation failure to a turn position.
type TurnError struct {
	Index int
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("messages[%d]: %v", e.Index, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }
