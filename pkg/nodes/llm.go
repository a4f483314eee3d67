package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

type llmSettings struct {
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKeyEnv    string        `mapstructure:"api_key_env"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Temperature  *float64      `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LLMDefaults fill in settings an llm node leaves empty.
type LLMDefaults struct {
	Model     string
	BaseURL   string
	APIKeyEnv string
}

// LLM answers its prompt through an OpenAI-compatible chat completion API,
// speaking as the graph's character.
type LLM struct {
	base
	defaults LLMDefaults
	cfg      llmSettings
	client   openai.Client
}

func (l *LLM) Configure(settings map[string]any) error {
	l.cfg = llmSettings{
		Model:     l.defaults.Model,
		BaseURL:   l.defaults.BaseURL,
		APIKeyEnv: "OPENAI_API_KEY",
		Timeout:   60 * time.Second,
	}
	if l.defaults.APIKeyEnv != "" {
		l.cfg.APIKeyEnv = l.defaults.APIKeyEnv
	}
	if err := schema.Decode(settings, &l.cfg); err != nil {
		return err
	}
	if l.cfg.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	return nil
}

func (l *LLM) Setup(_ context.Context, rt ports.Runtime) error {
	l.rt = rt
	key := os.Getenv(l.cfg.APIKeyEnv)
	if key == "" && l.cfg.BaseURL == "" {
		return fmt.Errorf("environment variable %s is not set", l.cfg.APIKeyEnv)
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if l.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(l.cfg.BaseURL))
	}
	l.client = openai.NewClient(opts...)
	return nil
}

func (l *LLM) Execute(ctx context.Context, in ports.Inputs) (ports.Outputs, error) {
	prompt := stringify(in["prompt"])
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("empty prompt")
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(l.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(l.rt.Character(), l.cfg.SystemPrompt)),
			openai.UserMessage(prompt),
		},
	}
	if l.cfg.Temperature != nil {
		params.Temperature = openai.Float(*l.cfg.Temperature)
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()
	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	return ports.Outputs{"reply": resp.Choices[0].Message.Content}, nil
}

// systemPrompt builds the persona instructions from the character.
func systemPrompt(ch domain.Character, extra string) string {
	var b strings.Builder
	if ch.Name != "" {
		fmt.Fprintf(&b, "You are %s.", ch.Name)
	}
	if ch.Prompt != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(ch.Prompt)
	}
	if len(ch.Personality) > 0 {
		keys := make([]string, 0, len(ch.Personality))
		for k := range ch.Personality {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nPersonality:")
		for _, k := range keys {
			raw, err := json.Marshal(ch.Personality[k])
			if err != nil {
				continue
			}
			fmt.Fprintf(&b, "\n- %s: %s", k, raw)
		}
	}
	if extra != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(extra)
	}
	return b.String()
}
