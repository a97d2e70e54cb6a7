package ai

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/lumen/backend/internal/logging"
	"github.com/zhouzirui/lumen/backend/internal/model/chat"
	"github.com/zhouzirui/lumen/backend/internal/model/profile"
)

type fakeChatModel struct {
	mu        sync.Mutex
	received  []*schema.Message
	chunks    []string
	openErr   error
	streamErr error
}

func (f *fakeChatModel) record(input []*schema.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append([]*schema.Message(nil), input...)
}

func (f *fakeChatModel) prompt() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.received
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.record(input)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return schema.AssistantMessage(strings.Join(f.chunks, ""), nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.record(input)
	if f.openErr != nil {
		return nil, f.openErr
	}

	reader, writer := schema.Pipe[*schema.Message](len(f.chunks) + 1)
	go func() {
		defer writer.Close()
		for _, c := range f.chunks {
			writer.Send(schema.AssistantMessage(c, nil), nil)
		}
		if f.streamErr != nil {
			writer.Send(nil, f.streamErr)
		}
	}()
	return reader, nil
}

func newTestService(t *testing.T, fake *fakeChatModel, streaming bool) *Service {
	t.Helper()
	svc, err := NewServiceWithModel(context.Background(), fake, streaming, logging.Discard())
	require.NoError(t, err)
	return svc
}

func lumen(t *testing.T) profile.Profile {
	t.Helper()
	p, ok := profile.NewMemoryStore(profile.Seed()).FindByID(profile.DefaultID)
	require.True(t, ok)
	return p
}

func drain(t *testing.T, stream FragmentStream) ([]string, error) {
	t.Helper()
	var fragments []string
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return fragments, nil
		}
		if err != nil {
			return fragments, err
		}
		fragments = append(fragments, fragment)
	}
}

func TestStreamReplyComposesSystemPromptFirst(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"ok"}}
	svc := newTestService(t, fake, true)
	p := lumen(t)

	stream, err := svc.StreamReply(context.Background(), p, chat.Transcript{
		{ID: "1", Role: chat.RoleUser, Content: "I feel anxious"},
	})
	require.NoError(t, err)
	defer stream.Close()
	_, err = drain(t, stream)
	require.NoError(t, err)

	sent := fake.prompt()
	require.Len(t, sent, 2)
	assert.Equal(t, schema.System, sent[0].Role)
	assert.Equal(t, p.SystemPrompt, sent[0].Content)
	assert.Equal(t, schema.User, sent[1].Role)
	assert.Equal(t, "I feel anxious", sent[1].Content)
}

func TestStreamReplyPreservesTurnOrderVerbatim(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"ok"}}
	svc := newTestService(t, fake, true)

	transcript := chat.Transcript{
		{ID: "welcome", Role: chat.RoleAssistant, Content: "Hi {there}, how are you?"},
		{ID: "1", Role: chat.RoleUser, Content: "not great"},
		{ID: "2", Role: chat.RoleAssistant, Content: ""},
		{ID: "3", Role: chat.RoleUser, Content: "still here"},
	}
	stream, err := svc.StreamReply(context.Background(), lumen(t), transcript)
	require.NoError(t, err)
	defer stream.Close()
	_, err = drain(t, stream)
	require.NoError(t, err)

	sent := fake.prompt()
	require.Len(t, sent, len(transcript)+1)
	for i, turn := range transcript {
		assert.Equal(t, string(turn.Role), string(sent[i+1].Role))
		assert.Equal(t, turn.Content, sent[i+1].Content)
	}
}

func TestStreamReplyYieldsFragmentsInOrder(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"Take ", "a slow ", "", "breath."}}
	svc := newTestService(t, fake, true)

	stream, err := svc.StreamReply(context.Background(), lumen(t), chat.Transcript{{ID: "1", Role: chat.RoleUser, Content: "help"}})
	require.NoError(t, err)
	defer stream.Close()

	fragments, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"Take ", "a slow ", "breath."}, fragments)
}

func TestStreamReplySurfacesMidStreamError(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"Hel", "lo"}, streamErr: errors.New("connection reset")}
	svc := newTestService(t, fake, true)

	stream, err := svc.StreamReply(context.Background(), lumen(t), chat.Transcript{{ID: "1", Role: chat.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	defer stream.Close()

	fragments, err := drain(t, stream)
	assert.Error(t, err)
	assert.Equal(t, "Hello", strings.Join(fragments, ""))
}

func TestStreamReplyOpenError(t *testing.T) {
	fake := &fakeChatModel{openErr: errors.New("401 unauthorized")}
	svc := newTestService(t, fake, true)

	_, err := svc.StreamReply(context.Background(), lumen(t), chat.Transcript{{ID: "1", Role: chat.RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

func TestNonStreamingReplyIsSingleFragment(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"one ", "reply"}}
	svc := newTestService(t, fake, false)
	assert.False(t, svc.StreamingEnabled())

	stream, err := svc.StreamReply(context.Background(), lumen(t), chat.Transcript{{ID: "1", Role: chat.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	defer stream.Close()

	fragments, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"one reply"}, fragments)
}

func TestStaticStreamEmptyReply(t *testing.T) {
	stream := newStaticStream("")
	_, err := stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}
