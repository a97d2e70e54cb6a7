package config

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/zhouzirui/lumen/backend/internal/model/profile"
)

// 环境变量名。
const (
	KeyPort           = "PORT"
	KeyAPIKey         = "ARK_API_KEY"
	KeyAccessKey      = "ARK_ACCESS_KEY"
	KeySecretKey      = "ARK_SECRET_KEY"
	KeyModel          = "ARK_MODEL"
	KeyBaseURL        = "ARK_BASE_URL"
	KeyRegion         = "ARK_REGION"
	KeyTemperature    = "ARK_TEMPERATURE"
	KeyTopP           = "ARK_TOP_P"
	KeyMaxTokens      = "ARK_MAX_TOKENS"
	KeyStream         = "ARK_STREAM"
	KeyRelayTimeout   = "RELAY_TIMEOUT"
	KeyProfile        = "BEHAVIOR_PROFILE"
	KeyAllowedOrigins = "CORS_ALLOWED_ORIGINS"
	KeyLogLevel       = "LOG_LEVEL"
	KeyLogFormat      = "LOG_FORMAT"
)

// DefaultRelayTimeout 是单次中继请求的默认墙钟时限。
const DefaultRelayTimeout = 30 * time.Second

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Relay  RelayConfig
	Log    LogConfig
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey         string
	AccessKey      string
	SecretKey      string
	Model          string
	BaseURL        string
	Region         string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	StreamResponse bool
}

// RelayConfig 描述流式中继配置。
type RelayConfig struct {
	Timeout   time.Duration
	ProfileID string
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level  string
	Format string
}

// New 返回绑定环境变量并设置默认值的 viper 实例。
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeyBaseURL, "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault(KeyRegion, "cn-beijing")
	v.SetDefault(KeyStream, "true")
	v.SetDefault(KeyRelayTimeout, DefaultRelayTimeout.String())
	v.SetDefault(KeyProfile, profile.DefaultID)
	v.SetDefault(KeyAllowedOrigins, "*")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	return v
}

// Load 从 viper 读取配置。
func Load(v *viper.Viper) (*Config, error) {
	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	relay, err := loadRelayConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Relay:  relay,
		Log: LogConfig{
			Level:  strings.ToLower(getString(v, KeyLogLevel)),
			Format: strings.ToLower(getString(v, KeyLogFormat)),
		},
	}, nil
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	origins := splitList(getString(v, KeyAllowedOrigins))

	port := getString(v, KeyPort)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, errors.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。重试由调用方决定，这里关闭 SDK 自带重试。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("provider credential or model missing: set ARK_MODEL and ARK_API_KEY (or ARK_ACCESS_KEY + ARK_SECRET_KEY)")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	retries := 0
	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
		RetryTimes:  &retries,
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create ark chat model")
	}
	return chatModel, nil
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	temperature, err := parseOptionalFloat(v, KeyTemperature)
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloat(v, KeyTopP)
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalInt(v, KeyMaxTokens)
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBool(v, KeyStream, true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:         getString(v, KeyAPIKey),
		AccessKey:      getString(v, KeyAccessKey),
		SecretKey:      getString(v, KeySecretKey),
		Model:          getString(v, KeyModel),
		BaseURL:        getString(v, KeyBaseURL),
		Region:         getString(v, KeyRegion),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
	}, nil
}

func loadRelayConfig(v *viper.Viper) (RelayConfig, error) {
	raw := getString(v, KeyRelayTimeout)
	timeout := DefaultRelayTimeout
	if raw != "" {
		parsed, err := parseDuration(raw)
		if err != nil {
			return RelayConfig{}, errors.Wrapf(err, "invalid %s value %q", KeyRelayTimeout, raw)
		}
		timeout = parsed
	}
	if timeout <= 0 {
		return RelayConfig{}, errors.Errorf("invalid %s value %q: must be positive", KeyRelayTimeout, raw)
	}

	profileID := getString(v, KeyProfile)
	if profileID == "" {
		profileID = profile.DefaultID
	}

	return RelayConfig{Timeout: timeout, ProfileID: profileID}, nil
}

// parseDuration 接受 Go 时长字符串，纯数字按秒处理。
func parseDuration(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

func getString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBool(v *viper.Viper, key string, defaultValue bool) (bool, error) {
	raw := getString(v, key)
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s value %q", key, raw)
	}
	return val, nil
}

func parseOptionalFloat(v *viper.Viper, key string) (*float64, error) {
	value := getString(v, key)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s value %q", key, value)
	}
	return &val, nil
}

func parseOptionalInt(v *viper.Viper, key string) (*int, error) {
	value := getString(v, key)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s value %q", key, value)
	}
	return &val, nil
}
