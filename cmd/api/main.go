package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zhouzirui/lumen/backend/internal/config"
	"github.com/zhouzirui/lumen/backend/internal/handler"
	"github.com/zhouzirui/lumen/backend/internal/logging"
	"github.com/zhouzirui/lumen/backend/internal/model/directory"
	"github.com/zhouzirui/lumen/backend/internal/model/profile"
	"github.com/zhouzirui/lumen/backend/internal/service/ai"
	"github.com/zhouzirui/lumen/backend/internal/service/relay"
)

var (
	v = config.New()

	rootCmd = &cobra.Command{
		Use:   "lumen",
		Short: "Lumen streaming chat relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, v)
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("port", "", "port or address to listen on")
	flags.String("profile", "", "behavior profile id")
	flags.String("timeout", "", "per-session relay deadline, e.g. 30s")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")

	for key, flag := range map[string]string{
		config.KeyPort:         "port",
		config.KeyProfile:      "profile",
		config.KeyRelayTimeout: "timeout",
		config.KeyLogLevel:     "log-level",
		config.KeyLogFormat:    "log-format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	profiles := profile.NewMemoryStore(profile.Seed())
	active, ok := profiles.FindByID(cfg.Relay.ProfileID)
	if !ok {
		ids := make([]string, 0)
		for _, p := range profiles.List() {
			ids = append(ids, p.ID)
		}
		return errors.Errorf("unknown behavior profile %q (available: %s)", cfg.Relay.ProfileID, strings.Join(ids, ", "))
	}

	// 未配置模型时静态目录仍可用，聊天接口返回 503
	var relaySvc *relay.Relay
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, logger)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize AI service, continuing without chat relay")
		} else {
			relaySvc = relay.New(aiService, active, cfg.Relay.Timeout, logger)
			logger.WithFields(logrus.Fields{
				"model":     cfg.AI.Model,
				"profile":   relaySvc.Profile().ID,
				"streaming": aiService.StreamingEnabled(),
				"timeout":   relaySvc.Timeout().String(),
			}).Info("chat relay initialized")
		}
	} else {
		logger.Warn("Ark 凭证未配置，跳过聊天中继初始化")
	}

	router := handler.NewRouter(handler.Dependencies{
		Relay:     relaySvc,
		Profile:   active,
		Directory: directory.NewMemoryStore(),
		Origins:   cfg.Server.AllowedOrigins,
		Logger:    logger,
	})

	return startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *logrus.Logger) error {
	addr := serverCfg.Addr
	// 不设置 WriteTimeout：流式响应的时长由中继自身的截止时间约束
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.WithField("addr", addr).Info("Lumen backend listening")
	if err := runServer(ctx, srv); err != nil {
		return errors.Wrap(err, "server error")
	}
	logger.Info("server stopped")
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
