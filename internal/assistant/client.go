package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const (
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderCommand = "command" // Текст начинался с "/", LLM не вызывалась
	ProviderParser  = "parser"  // Все модели недоступны, использован разбор команд
)

// Config - настройки ассистента. Собирается в main из config.Config.
type Config struct {
	Providers     []string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiModel   string
	Timeout       time.Duration
	Temperature   float64
}

// Provider - одна модель в цепочке
type Provider struct {
	Name  string
	Model llms.Model
}

// Interpretation - результат разбора сообщения
type Interpretation struct {
	Intent   Intent
	Provider string
	Raw      string
}

// Client превращает сообщение пользователя в Intent: сначала модели по приоритету, затем разбор команд
type Client struct {
	providers   []Provider
	timeout     time.Duration
	temperature float64
}

// NewClient создает модели из конфигурации. Провайдеры без ключа или с ошибкой инициализации пропускаются.
func NewClient(ctx context.Context, cfg Config) *Client {
	var providers []Provider
	for _, name := range cfg.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ProviderOpenAI:
			if cfg.OpenAIAPIKey == "" {
				continue
			}
			opts := []openai.Option{openai.WithToken(cfg.OpenAIAPIKey)}
			if cfg.OpenAIModel != "" {
				opts = append(opts, openai.WithModel(cfg.OpenAIModel))
			}
			if cfg.OpenAIBaseURL != "" {
				opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
			}
			model, err := openai.New(opts...)
			if err != nil {
				log.Printf("⚠️ OpenAI provider disabled: %v", err)
				continue
			}
			providers = append(providers, Provider{Name: ProviderOpenAI, Model: model})

		case ProviderGemini:
			if cfg.GeminiAPIKey == "" {
				continue
			}
			opts := []googleai.Option{googleai.WithAPIKey(cfg.GeminiAPIKey)}
			if cfg.GeminiModel != "" {
				opts = append(opts, googleai.WithDefaultModel(cfg.GeminiModel))
			}
			model, err := googleai.New(ctx, opts...)
			if err != nil {
				log.Printf("⚠️ Gemini provider disabled: %v", err)
				continue
			}
			providers = append(providers, Provider{Name: ProviderGemini, Model: model})

		default:
			log.Printf("⚠️ Unknown AI provider %q ignored", name)
		}
	}

	if len(providers) == 0 {
		log.Println("⚠️ AI providers not configured, assistant works with slash commands only")
	} else {
		names := make([]string, 0, len(providers))
		for _, p := range providers {
			names = append(names, p.Name)
		}
		log.Printf("✅ AI providers: %s", strings.Join(names, " -> "))
	}
	return NewClientWithProviders(providers, cfg.Timeout, cfg.Temperature)
}

// NewClientWithProviders собирает клиент из готовых моделей
func NewClientWithProviders(providers []Provider, timeout time.Duration, temperature float64) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{providers: providers, timeout: timeout, temperature: temperature}
}

// HasProviders - настроена ли хотя бы одна модель
func (c *Client) HasProviders() bool {
	return c != nil && len(c.providers) > 0
}

// Interpret определяет намерение пользователя. snapshot - текущее состояние склада для контекста модели.
func (c *Client) Interpret(ctx context.Context, message, snapshot string) Interpretation {
	if strings.HasPrefix(strings.TrimSpace(message), "/") {
		return Interpretation{Intent: ParseCommand(message), Provider: ProviderCommand}
	}

	if c != nil {
		for _, p := range c.providers {
			raw, err := c.generate(ctx, p, message, snapshot)
			if err != nil {
				log.Printf("⚠️ AI provider %s failed: %v", p.Name, err)
				continue
			}
			return Interpretation{Intent: DecodeIntent(raw), Provider: p.Name, Raw: raw}
		}
	}

	return Interpretation{Intent: ParseCommand(message), Provider: ProviderParser}
}

func (c *Client) generate(ctx context.Context, p Provider, message, snapshot string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
	}
	if snapshot != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, "Current stock:\n"+snapshot))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, message))

	resp, err := p.Model.GenerateContent(ctx, messages,
		llms.WithTemperature(c.temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return resp.Choices[0].Content, nil
}
