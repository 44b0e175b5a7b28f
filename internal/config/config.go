package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合聊天服务与终端小部件的配置项。
type Config struct {
	Server  ServerConfig
	Service ServiceConfig
	AI      AIConfig
	Widget  WidgetConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	service, err := loadServiceConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	widget, err := loadWidgetConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Service: service,
		AI:      ai,
		Widget:  widget,
		Log:     loadLogConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// 小部件支持的推荐回复传输格式。
const (
	SuggestionFormatPlain  = "plain"
	SuggestionFormatTagged = "tagged"
)

// ServiceConfig 描述聊天机器人服务自身的行为。
type ServiceConfig struct {
	// SuggestionFormat 选择字符串数组或 {sid, suggestion_text} 对象数组。
	SuggestionFormat string
	// PersonaFile 可选，指向 YAML 格式的 persona 列表。
	PersonaFile string
	// DefaultPersona 在创建会话未指定 persona 时使用。
	DefaultPersona string
	MaxSuggestions int
}

func loadServiceConfig() (ServiceConfig, error) {
	format := strings.ToLower(getEnvOrDefault("SUGGESTION_FORMAT", SuggestionFormatPlain))
	if format != SuggestionFormatPlain && format != SuggestionFormatTagged {
		return ServiceConfig{}, fmt.Errorf("invalid SUGGESTION_FORMAT value %q: want %s or %s", format, SuggestionFormatPlain, SuggestionFormatTagged)
	}

	maxSuggestions := 3
	if override, err := parseOptionalIntEnv("MAX_SUGGESTIONS"); err != nil {
		return ServiceConfig{}, err
	} else if override != nil {
		maxSuggestions = *override
		if maxSuggestions < 0 {
			maxSuggestions = 0
		}
	}

	return ServiceConfig{
		SuggestionFormat: format,
		PersonaFile:      strings.TrimSpace(os.Getenv("PERSONA_FILE")),
		DefaultPersona:   getEnvOrDefault("DEFAULT_PERSONA", "concierge"),
		MaxSuggestions:   maxSuggestions,
	}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	HistoryLimit int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + Model or an AK/SK pair")
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

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit := 10
	if override, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		historyLimit = max(*override, 1)
	}

	return AIConfig{
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:        strings.TrimSpace(os.Getenv("Model")),
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		HistoryLimit: historyLimit,
	}, nil
}

// WidgetConfig 描述终端聊天小部件的配置。
type WidgetConfig struct {
	APIURL  string
	Timeout time.Duration
	Persona string
	// RequireSession 会话创建成功前拒绝其他操作。
	RequireSession bool
	// SerializeActions 同一时间最多只允许一个请求。
	SerializeActions bool
	// SurfaceErrors 操作失败时显示短暂提示。
	SurfaceErrors bool
	Markdown      bool
}

func loadWidgetConfig() (WidgetConfig, error) {
	apiURL := strings.TrimRight(getEnvOrDefault("CHATBOT_API_URL", "http://localhost:8080"), "/")
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return WidgetConfig{}, fmt.Errorf("invalid CHATBOT_API_URL value %q: %w", apiURL, err)
	}

	timeout, err := parseDurationEnv("CHATBOT_TIMEOUT", 30*time.Second)
	if err != nil {
		return WidgetConfig{}, err
	}

	requireSession, err := parseBoolEnv("WIDGET_REQUIRE_SESSION", true)
	if err != nil {
		return WidgetConfig{}, err
	}

	serialize, err := parseBoolEnv("WIDGET_SERIALIZE_ACTIONS", true)
	if err != nil {
		return WidgetConfig{}, err
	}

	surface, err := parseBoolEnv("WIDGET_SURFACE_ERRORS", true)
	if err != nil {
		return WidgetConfig{}, err
	}

	markdown, err := parseBoolEnv("WIDGET_MARKDOWN", true)
	if err != nil {
		return WidgetConfig{}, err
	}

	return WidgetConfig{
		APIURL:           apiURL,
		Timeout:          timeout,
		Persona:          strings.TrimSpace(os.Getenv("WIDGET_PERSONA")),
		RequireSession:   requireSession,
		SerializeActions: serialize,
		SurfaceErrors:    surface,
		Markdown:         markdown,
	}, nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level string
	File  string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level: getEnvOrDefault("LOG_LEVEL", "info"),
		File:  strings.TrimSpace(os.Getenv("LOG_FILE")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	// 纯数字按秒处理。
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
