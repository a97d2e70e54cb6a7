package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/lumen/backend/internal/logging"
	"github.com/zhouzirui/lumen/backend/internal/model/chat"
	"github.com/zhouzirui/lumen/backend/internal/model/profile"
	"github.com/zhouzirui/lumen/backend/internal/service/ai"
	"github.com/zhouzirui/lumen/backend/internal/service/relay"
	"github.com/zhouzirui/lumen/backend/pkg/utils"
)

type chunk struct {
	text string
	err  error
}

type sliceStream struct {
	mu     sync.Mutex
	chunks []chunk
}

func (s *sliceStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunks) == 0 {
		return "", io.EOF
	}
	next := s.chunks[0]
	s.chunks = s.chunks[1:]
	return next.text, next.err
}

func (s *sliceStream) Close() {}

type fakeStreamer struct {
	mu      sync.Mutex
	calls   int
	chunks  []chunk
	openErr error
}

func (f *fakeStreamer) StreamReply(_ context.Context, _ profile.Profile, _ chat.Transcript) (ai.FragmentStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &sliceStream{chunks: append([]chunk(nil), f.chunks...)}, nil
}

func setupRouter(streamer *fakeStreamer) *chi.Mux {
	return setupRouterWithTimeout(streamer, 2*time.Second)
}

func setupRouterWithTimeout(streamer *fakeStreamer, timeout time.Duration) *chi.Mux {
	p, _ := profile.NewMemoryStore(profile.Seed()).FindByID(profile.DefaultID)
	r := relay.New(streamer, p, timeout, logging.Discard())

	router := chi.NewRouter()
	New(r, logging.Discard()).RegisterRoutes(router)
	return router
}

func post(router http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

const helloTranscript = `{"messages":[{"id":"1","role":"user","content":"I feel anxious"}]}`

func TestChatStreamsSSEInOrder(t *testing.T) {
	streamer := &fakeStreamer{chunks: []chunk{{text: "Hel"}, {text: "lo"}}}
	resp := post(setupRouter(streamer), "/chat", helloTranscript)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))

	body := resp.Body.String()
	start := strings.Index(body, "event: start")
	hel := strings.Index(body, `"content":"Hel"`)
	lo := strings.Index(body, `"content":"lo"`)
	end := strings.Index(body, "event: end")
	assert.True(t, start >= 0 && start < hel && hel < lo && lo < end, body)
	assert.Equal(t, 1, streamer.calls)
}

func TestChatRejectsMalformedTranscriptWithoutProviderCall(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"messages":`,
		"missing role":  `{"messages":[{"content":"hi"}]}`,
		"invalid role":  `{"messages":[{"role":"system","content":"hi"}]}`,
		"empty":         `{"messages":[]}`,
		"missing field": `{}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			streamer := &fakeStreamer{chunks: []chunk{{text: "never"}}}
			resp := post(setupRouter(streamer), "/chat", body)

			assert.Equal(t, http.StatusBadRequest, resp.Code)
			var payload utils.ErrorBody
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
			assert.Equal(t, "malformed_request", payload.Kind)
			assert.Zero(t, streamer.calls)
		})
	}
}

func TestChatReportsMidStreamFailureAfterPartialOutput(t *testing.T) {
	streamer := &fakeStreamer{chunks: []chunk{{text: "Hel"}, {text: "lo"}, {err: errors.New("connection reset")}}}
	resp := post(setupRouter(streamer), "/chat", helloTranscript)

	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, `"content":"Hel"`)
	assert.Contains(t, body, `"content":"lo"`)
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, `"kind":"provider_stream_error"`)
	assert.NotContains(t, body, "event: end")
}

func TestChatReportsProviderUnavailableBeforeStreaming(t *testing.T) {
	streamer := &fakeStreamer{openErr: errors.New("dial tcp: refused")}
	resp := post(setupRouter(streamer), "/chat", helloTranscript)

	assert.Equal(t, http.StatusBadGateway, resp.Code)
	var payload utils.ErrorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, "provider_unavailable", payload.Kind)
	assert.NotContains(t, payload.Error, "refused")
}

func TestChatTextProtocol(t *testing.T) {
	streamer := &fakeStreamer{chunks: []chunk{{text: "Hel"}, {text: "lo"}}}
	resp := post(setupRouter(streamer), "/chat?protocol=text", helloTranscript)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Hello", resp.Body.String())
	assert.Equal(t, "true", resp.Result().Trailer.Get("X-Stream-Complete"))
}

func TestChatDataProtocol(t *testing.T) {
	streamer := &fakeStreamer{chunks: []chunk{{text: "Hel"}, {text: "lo"}}}
	resp := post(setupRouter(streamer), "/chat?protocol=data", helloTranscript)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "v1", resp.Header().Get("X-Vercel-AI-Data-Stream"))

	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "f:"))
	assert.Equal(t, `0:"Hel"`, lines[1])
	assert.Equal(t, `0:"lo"`, lines[2])
	assert.Equal(t, `d:{"finishReason":"stop"}`, lines[3])
}

func TestChatWithoutProvider(t *testing.T) {
	router := chi.NewRouter()
	New(nil, logging.Discard()).RegisterRoutes(router)

	resp := post(router, "/chat", helloTranscript)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestChatRejectsTrailingGarbageWithoutProviderCall(t *testing.T) {
	streamer := &fakeStreamer{chunks: []chunk{{text: "never"}}}
	resp := post(setupRouter(streamer), "/chat", helloTranscript+`{"messages":"junk"} trailing`)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, streamer.calls)
}

func TestChatBoundsSlowBodyUpload(t *testing.T) {
	streamer := &fakeStreamer{chunks: []chunk{{text: "never"}}}
	server := httptest.NewServer(setupRouterWithTimeout(streamer, 100*time.Millisecond))
	t.Cleanup(server.Close)

	conn, err := net.Dial("tcp", server.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// 声明的长度大于实际发送的内容，请求体永远读不完
	_, err = io.WriteString(conn, "POST /chat HTTP/1.1\r\nHost: lumen\r\nContent-Type: application/json\r\nContent-Length: 200\r\n\r\n{\"messages\":")
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	res, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusGatewayTimeout, res.StatusCode)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Zero(t, streamer.calls)
}
