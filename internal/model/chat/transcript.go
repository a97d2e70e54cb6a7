package chat

import (
	"encoding/json"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MaxRequestBytes caps the size of an inbound transcript body.
const MaxRequestBytes = 1 << 20

var (
	ErrMissingRole    = errors.New("turn is missing the role field")
	ErrMissingContent = errors.New("turn is missing the content field")
	ErrBodyTooLarge   = errors.New("request body too large")
)

// wireTurn keeps field presence so an absent content can be told apart from an empty one.
type wireTurn struct {
	ID      *string `json:"id"`
	Role    *string `json:"role"`
	Content *string `json:"content"`
}

type wireRequest struct {
	Messages []wireTurn `json:"messages"`
}

// DecodeTranscript reads a `{"messages": [...]}` body and returns a validated transcript.
// Turns without an id receive a generated one.
func DecodeTranscript(r io.Reader) (Transcript, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxRequestBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read request body")
	}
	return UnmarshalTranscript(data)
}

// UnmarshalTranscript is DecodeTranscript for an in-memory payload.
func UnmarshalTranscript(data []byte) (Transcript, error) {
	if len(data) > MaxRequestBytes {
		return nil, ErrBodyTooLarge
	}

	var req wireRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errors.Wrap(err, "invalid request body")
	}
	return req.transcript()
}

func (req wireRequest) transcript() (Transcript, error) {
	transcript := make(Transcript, 0, len(req.Messages))
	for i, raw := range req.Messages {
		if raw.Role == nil || *raw.Role == "" {
			return nil, &TurnError{Index: i, Err: ErrMissingRole}
		}
		if raw.Content == nil {
			return nil, &TurnError{Index: i, Err: ErrMissingContent}
		}

		id := ""
		if raw.ID != nil {
			id = *raw.ID
		}
		if id == "" {
			id = uuid.NewString()
		}

		transcript = append(transcript, Turn{
			ID:      id,
			Role:    Role(*raw.Role),
			Content: *raw.Content,
		})
	}

	if err := transcript.Validate(); err != nil {
		return nil, err
	}
	return transcript, nil
}
