package chat

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lumen/backend/internal/handler/stream"
	"github.com/zhouzirui/lumen/backend/internal/model/chat"
	"github.com/zhouzirui/lumen/backend/internal/service/relay"
	"github.com/zhouzirui/lumen/backend/pkg/utils"
)

// Handler 聊天中继的HTTP处理器
type Handler struct {
	relay  *relay.Relay
	logger logrus.FieldLogger
}

// New 创建聊天处理器。relay 为 nil 表示模型未配置，请求直接返回 503。
func New(r *relay.Relay, logger logrus.FieldLogger) *Handler {
	return &Handler{
		relay:  r,
		logger: logger.WithField("component", "chat_handler"),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

// handleChat 把对话记录转发给模型，并按协商的格式流式返回
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if h.relay == nil {
		utils.RespondErrorKind(w, http.StatusServiceUnavailable, string(relay.KindProviderUnavailable), "ai provider not configured")
		return
	}

	// 请求体的读取同样受中继时限约束，读完后清除，避免后台读在流式输出期间超时
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Now().Add(h.relay.Timeout()))
	transcript, err := chat.DecodeTranscript(r.Body)
	_ = rc.SetReadDeadline(time.Time{})
	if err != nil {
		kind := relay.KindMalformedRequest
		if errors.Is(err, os.ErrDeadlineExceeded) {
			kind = relay.KindTimeout
		}
		h.respondFailure(w, relay.NewError(kind, err))
		return
	}

	sink, err := stream.NewWriter(stream.Negotiate(r), w)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.relay.Run(r.Context(), transcript, sink); err != nil {
		var relayErr *relay.Error
		if !errors.As(err, &relayErr) {
			h.logger.WithError(err).Error("unexpected relay failure")
			return
		}
		// 已开始的流由 sink 自己收尾；调用方已断开时无需回写。
		if relayErr.Started || relayErr.Kind == relay.KindCallerGone {
			return
		}
		h.respondFailure(w, relayErr)
	}
}

func (h *Handler) respondFailure(w http.ResponseWriter, relayErr *relay.Error) {
	utils.RespondErrorKind(w, relay.HTTPStatus(relayErr.Kind), string(relayErr.Kind), relayErr.PublicMessage())
}
