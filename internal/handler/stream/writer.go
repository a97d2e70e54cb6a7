package stream

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/zhouzirui/lumen/backend/internal/service/relay"
	"github.com/zhouzirui/lumen/backend/pkg/utils"
)

// Protocol selects the incremental framing of a relay response.
type Protocol string

const (
	// ProtocolSSE frames fragments as Server-Sent Events with a terminal "end" event.
	ProtocolSSE Protocol = "sse"
	// ProtocolText writes raw fragments; completion is reported in a trailer.
	ProtocolText Protocol = "text"
	// ProtocolData is the AI SDK data stream line protocol.
	ProtocolData Protocol = "data"
)

const (
	HeaderMessageID      = "X-Message-Id"
	TrailerComplete      = "X-Stream-Complete"
	TrailerErrorKind     = "X-Stream-Error"
	HeaderDataStream     = "X-Vercel-AI-Data-Stream"
	dataStreamVersion    = "v1"
	textContentType      = "text/plain; charset=utf-8"
	finishReasonComplete = "stop"
)

var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Negotiate picks the framing from the protocol query parameter, then the Accept header.
func Negotiate(r *http.Request) Protocol {
	switch Protocol(strings.ToLower(r.URL.Query().Get("protocol"))) {
	case ProtocolText:
		return ProtocolText
	case ProtocolData:
		return ProtocolData
	case ProtocolSSE:
		return ProtocolSSE
	}

	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "text/plain") && !strings.Contains(accept, "text/event-stream") {
		return ProtocolText
	}
	return ProtocolSSE
}

// NewWriter returns a relay sink writing the given protocol to w.
func NewWriter(protocol Protocol, w http.ResponseWriter) (relay.Sink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	switch protocol {
	case ProtocolText:
		return &textWriter{w: w, flusher: flusher}, nil
	case ProtocolData:
		return &dataWriter{w: w, flusher: flusher}, nil
	default:
		return &sseWriter{w: w, flusher: flusher}, nil
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	MessageID string `json:"messageId,omitempty"`
	Content   string `json:"content,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseWriter) Begin(messageID string) error {
	utils.SetupSSEHeaders(s.w)
	s.w.Header().Set(HeaderMessageID, messageID)
	s.w.WriteHeader(http.StatusOK)
	return s.send(StreamResponse{Event: "start", MessageID: messageID})
}

func (s *sseWriter) Fragment(text string) error {
	return s.send(StreamResponse{Event: "delta", Content: text})
}

func (s *sseWriter) End() error {
	return s.send(StreamResponse{Event: "end", Finished: true})
}

func (s *sseWriter) Abort(err *relay.Error) {
	_ = s.send(StreamResponse{Event: "error", Kind: string(err.Kind), Error: err.PublicMessage()})
}

func (s *sseWriter) send(response StreamResponse) error {
	return utils.SendSSEEvent(s.w, s.flusher, response.Event, response)
}

type textWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (t *textWriter) Begin(messageID string) error {
	h := t.w.Header()
	h.Set("Content-Type", textContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set(HeaderMessageID, messageID)
	h.Set("Trailer", TrailerComplete+", "+TrailerErrorKind)
	t.w.WriteHeader(http.StatusOK)
	t.flusher.Flush()
	return nil
}

func (t *textWriter) Fragment(text string) error {
	if _, err := t.w.Write([]byte(text)); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

func (t *textWriter) End() error {
	t.w.Header().Set(TrailerComplete, "true")
	return nil
}

func (t *textWriter) Abort(err *relay.Error) {
	t.w.Header().Set(TrailerComplete, "false")
	t.w.Header().Set(TrailerErrorKind, string(err.Kind))
}

type dataWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (d *dataWriter) Begin(messageID string) error {
	h := d.w.Header()
	h.Set("Content-Type", textContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set(HeaderDataStream, dataStreamVersion)
	h.Set(HeaderMessageID, messageID)
	d.w.WriteHeader(http.StatusOK)
	return d.part('f', map[string]string{"messageId": messageID})
}

func (d *dataWriter) Fragment(text string) error {
	return d.part('0', text)
}

func (d *dataWriter) End() error {
	return d.part('d', map[string]string{"finishReason": finishReasonComplete})
}

func (d *dataWriter) Abort(err *relay.Error) {
	_ = d.part('3', err.PublicMessage())
}

// part writes one `<code>:<json>\n` line.
func (d *dataWriter) part(code byte, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "marshal data stream part")
	}

	line := make([]byte, 0, len(payload)+3)
	line = append(line, code, ':')
	line = append(line, payload...)
	line = append(line, '\n')

	if _, err := d.w.Write(line); err != nil {
		return err
	}
	d.flusher.Flush()
	return nil
}
