package resources

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/lumen/backend/internal/model/directory"
	"github.com/zhouzirui/lumen/backend/pkg/utils"
)

// SearchResponse 治疗师搜索链接
type SearchResponse struct {
	URL string `json:"url"`
}

// Handler 危机热线与心理咨询目录的HTTP处理器
type Handler struct {
	store directory.Store
}

// New 创建目录处理器
func New(store directory.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册目录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/resources", func(res chi.Router) {
		res.Get("/crisis", h.handleCrisis)
		res.Get("/coping", h.handleCoping)
		res.Get("/therapy", h.handleTherapy)
		res.Get("/therapy/search", h.handleTherapistSearch)
	})
}

func (h *Handler) handleCrisis(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.CrisisLines())
}

func (h *Handler) handleCoping(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Coping())
}

func (h *Handler) handleTherapy(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Therapy())
}

// handleTherapistSearch 根据地区和专长生成搜索链接，两者都可为空
func (h *Handler) handleTherapistSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	utils.RespondJSON(w, http.StatusOK, SearchResponse{
		URL: directory.TherapistSearchURL(query.Get("location"), query.Get("specialty")),
	})
}
