package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/lumen/backend/internal/model/chat"
	"github.com/zhouzirui/lumen/backend/internal/service/relay"
	"github.com/zhouzirui/lumen/backend/pkg/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// 帧类型
const (
	FrameStart = "start"
	FrameDelta = "delta"
	FrameEnd   = "end"
	FrameError = "error"
)

// KindBusy 标记会话进行中被拒绝的帧。
const KindBusy = "session_busy"

// errConnectionClosed 让 errgroup 在读循环退出时取消其它协程。
var errConnectionClosed = errors.New("websocket connection closed")

// Frame 是服务端发出的一条 WebSocket 消息。
type Frame struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId,omitempty"`
	Content   string `json:"content,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Handler WebSocket聊天中继处理器。每个连接同一时间只处理一轮对话。
type Handler struct {
	relay    *relay.Relay
	logger   logrus.FieldLogger
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(r *relay.Relay, allowOrigin func(origin string) bool, logger logrus.FieldLogger) *Handler {
	return &Handler{
		relay:  r,
		logger: logger.WithField("component", "ws_handler"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(req *http.Request) bool {
				origin := req.Header.Get("Origin")
				return origin == "" || allowOrigin == nil || allowOrigin(origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/ws", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.relay == nil {
		utils.RespondErrorKind(w, http.StatusServiceUnavailable, string(relay.KindProviderUnavailable), "ai provider not configured")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(chat.MaxRequestBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &connection{conn: conn}
	inbound := make(chan []byte, 1)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return h.readLoop(ctx, c, inbound) })
	g.Go(func() error { return h.pingLoop(ctx, c) })
	g.Go(func() error { return h.sessionLoop(ctx, c, inbound) })

	if err := g.Wait(); err != nil && !errors.Is(err, errConnectionClosed) {
		h.logger.WithError(err).Warn("websocket connection ended with error")
	}
}

// readLoop 只接收空闲时到达的帧；会话进行中到达的帧直接回复错误。
func (h *Handler) readLoop(ctx context.Context, c *connection, inbound chan<- []byte) error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Info("websocket read failed")
			}
			return errConnectionClosed
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !c.busy.CompareAndSwap(false, true) {
			_ = c.send(Frame{Type: FrameError, Kind: KindBusy, Error: "a reply is already streaming on this connection"})
			continue
		}

		select {
		case inbound <- data:
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *Handler) sessionLoop(ctx context.Context, c *connection, inbound <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-inbound:
			// 终止帧发出前就释放连接，客户端收到 end 后可以立即发送下一轮。
			release := sync.OnceFunc(func() { c.busy.Store(false) })
			h.runSession(ctx, c, data, release)
			release()
		}
	}
}

func (h *Handler) runSession(ctx context.Context, c *connection, data []byte, release func()) {
	transcript, err := chat.UnmarshalTranscript(data)
	if err != nil {
		relayErr := relay.NewError(relay.KindMalformedRequest, err)
		release()
		_ = c.send(Frame{Type: FrameError, Kind: string(relayErr.Kind), Error: relayErr.PublicMessage()})
		return
	}

	err = h.relay.Run(ctx, transcript, &frameSink{conn: c, release: release})
	if err == nil {
		return
	}

	var relayErr *relay.Error
	if !errors.As(err, &relayErr) || relayErr.Started || relayErr.Kind == relay.KindCallerGone {
		return
	}
	release()
	_ = c.send(Frame{Type: FrameError, Kind: string(relayErr.Kind), Error: relayErr.PublicMessage()})
}

// pingLoop 保持连接活跃；退出时关闭连接以解除读循环的阻塞。
func (h *Handler) pingLoop(ctx context.Context, c *connection) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.conn.Close()
			return nil
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return errConnectionClosed
			}
		}
	}
}

// connection 串行化写操作，gorilla/websocket 不支持并发写。
type connection struct {
	conn *websocket.Conn
	mu   sync.Mutex
	busy atomic.Bool
}

func (c *connection) send(frame Frame) error {
	frame.Timestamp = time.Now().UnixMilli()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

// frameSink 把中继输出写成 WebSocket 帧。
type frameSink struct {
	conn    *connection
	release func()
}

func (s *frameSink) Begin(messageID string) error {
	return s.conn.send(Frame{Type: FrameStart, MessageID: messageID})
}

func (s *frameSink) Fragment(text string) error {
	return s.conn.send(Frame{Type: FrameDelta, Content: text})
}

func (s *frameSink) End() error {
	s.release()
	return s.conn.send(Frame{Type: FrameEnd})
}

func (s *frameSink) Abort(err *relay.Error) {
	s.release()
	_ = s.conn.send(Frame{Type: FrameError, Kind: string(err.Kind), Error: err.PublicMessage()})
}
