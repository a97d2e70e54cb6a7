package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/lumen/backend/internal/model/chat"
	"github.com/zhouzirui/lumen/backend/internal/model/profile"
	"github.com/zhouzirui/lumen/backend/pkg/utils"
)

// WelcomeTurnID 是客户端初始助手消息的固定ID
const WelcomeTurnID = "welcome"

// Response 描述当前生效的行为配置，系统提示词不会下发给客户端
type Response struct {
	Profile profile.Profile `json:"profile"`
	Welcome chat.Turn       `json:"welcome"`
}

// Handler profile服务的HTTP处理器
type Handler struct {
	active profile.Profile
}

// New 创建profile处理器
func New(active profile.Profile) *Handler {
	return &Handler{active: active}
}

// RegisterRoutes 注册profile相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleGetProfile)
}

// handleGetProfile 返回当前profile和欢迎语
func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, Response{
		Profile: h.active,
		Welcome: chat.Turn{
			ID:      WelcomeTurnID,
			Role:    chat.RoleAssistant,
			Content: h.active.WelcomeMessage,
		},
	})
}
