package ai

import (
	"io"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// FragmentStream is a lazy, finite, non-restartable sequence of text fragments.
// Recv returns io.EOF once the provider finished; any other error terminates the stream.
// Close may be called at any time and more than once.
type FragmentStream interface {
	Recv() (string, error)
	Close()
}

// messageStream adapts an eino message stream, dropping chunks without text.
type messageStream struct {
	reader *schema.StreamReader[*schema.Message]
	once   sync.Once
}

func newMessageStream(reader *schema.StreamReader[*schema.Message]) *messageStream {
	return &messageStream{reader: reader}
}

func (s *messageStream) Recv() (string, error) {
	for {
		chunk, err := s.reader.Recv()
		if err != nil {
			return "", err
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		return chunk.Content, nil
	}
}

func (s *messageStream) Close() {
	s.once.Do(s.reader.Close)
}

// staticStream yields a fully generated reply as one fragment.
type staticStream struct {
	mu      sync.Mutex
	content string
	done    bool
}

func newStaticStream(content string) *staticStream {
	return &staticStream{content: content, done: content == ""}
}

func (s *staticStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return "", io.EOF
	}
	s.done = true
	return s.content, nil
}

func (s *staticStream) Close() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
}
