package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/uphera/adachat/internal/handlers"
	"github.com/uphera/adachat/internal/services"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(logger *slog.Logger) (handlers.LLM, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type rateLimitConfig struct {
	PerSecond float64 `yaml:"perSecond"`
	Burst     int     `yaml:"burst"`
}

type config struct {
	Port         string               `yaml:"port"`
	LogLevel     string               `yaml:"logLevel"`
	SystemPrompt string               `yaml:"systemPrompt"`
	DBPath       string               `yaml:"dbPath"`
	HistoryLimit int                  `yaml:"historyLimit"`
	KeepAlive    time.Duration        `yaml:"keepAlive"`
	RateLimit    rateLimitConfig      `yaml:"rateLimit"`
	Suggestions  handlers.Suggestions `yaml:"suggestions"`
	LLM          llmConfig            `yaml:"llm"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string                 `yaml:"apiKey"`
	BaseURL       string                 `yaml:"baseURL"`
	Parameters    services.LLMParameters `yaml:"parameters"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	MaxTokens     int    `yaml:"maxTokens"`
	Endpoint      string `yaml:"endpoint"`
}

type openRouterConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port         string               `yaml:"port"`
		LogLevel     string               `yaml:"logLevel"`
		SystemPrompt string               `yaml:"systemPrompt"`
		DBPath       string               `yaml:"dbPath"`
		HistoryLimit int                  `yaml:"historyLimit"`
		KeepAlive    time.Duration        `yaml:"keepAlive"`
		RateLimit    rateLimitConfig      `yaml:"rateLimit"`
		Suggestions  handlers.Suggestions `yaml:"suggestions"`
		LLM          map[string]any       `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.LogLevel = rawConfig.LogLevel
	c.SystemPrompt = rawConfig.SystemPrompt
	c.DBPath = rawConfig.DBPath
	c.HistoryLimit = rawConfig.HistoryLimit
	c.KeepAlive = rawConfig.KeepAlive
	c.RateLimit = rawConfig.RateLimit
	c.Suggestions = rawConfig.Suggestions

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return errors.New("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "ollama":
		llm = &ollamaConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	case "openrouter":
		llm = &openRouterConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

func (c config) handlersConfig() handlers.Config {
	return handlers.Config{
		SystemPrompt: c.SystemPrompt,
		Suggestions:  c.Suggestions,
		HistoryLimit: c.HistoryLimit,
		KeepAlive:    c.KeepAlive,
		RateLimit:    rate.Limit(c.RateLimit.PerSecond),
		RateBurst:    c.RateLimit.Burst,
	}
}

func (c config) logLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (o ollamaConfig) llm(*slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, errors.New("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	return services.NewOllama(host, o.Model)
}

func (o openAIConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, errors.New("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, o.Parameters, logger), nil
}

func (a anthropicConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	if a.Model == "" {
		return nil, errors.New("model is required")
	}
	if a.MaxTokens == 0 {
		return nil, errors.New("maxTokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Model, a.MaxTokens, a.Endpoint, logger), nil
}

func (o openRouterConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, errors.New("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return services.NewOpenRouter(apiKey, o.Model, o.Endpoint, logger), nil
}
