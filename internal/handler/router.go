package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lumen/backend/internal/handler/chat"
	"github.com/zhouzirui/lumen/backend/internal/handler/profile"
	"github.com/zhouzirui/lumen/backend/internal/handler/resources"
	"github.com/zhouzirui/lumen/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/lumen/backend/internal/middleware"
	directoryModel "github.com/zhouzirui/lumen/backend/internal/model/directory"
	profileModel "github.com/zhouzirui/lumen/backend/internal/model/profile"
	"github.com/zhouzirui/lumen/backend/internal/service/relay"
	"github.com/zhouzirui/lumen/backend/pkg/utils"
)

// Dependencies 汇总路由需要的服务。Relay 为 nil 表示模型未配置。
type Dependencies struct {
	Relay     *relay.Relay
	Profile   profileModel.Profile
	Directory directoryModel.Store
	Origins   []string
	Logger    *logrus.Logger
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status             string `json:"status"`
	ProviderConfigured bool   `json:"providerConfigured"`
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	origins := middlewarePkg.Origins(deps.Origins)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: deps.Logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(origins))

	chatHandler := chat.New(deps.Relay, deps.Logger)
	wsHandler := ws.New(deps.Relay, origins.Allowed, deps.Logger)
	profileHandler := profile.New(deps.Profile)
	resourcesHandler := resources.New(deps.Directory)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, HealthResponse{
				Status:             "ok",
				ProviderConfigured: deps.Relay != nil,
			})
		})

		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
		profileHandler.RegisterRoutes(api)
		resourcesHandler.RegisterRoutes(api)
	})

	return r
}
