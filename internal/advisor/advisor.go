// Package advisor asks an OpenAI-compatible model for teaching
// recommendations on the descriptors a report shows as weakest.
package advisor

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/scoresheet/internal/model"
)

//go:embed prompts/advice.txt
var promptFS embed.FS

var dataTagRegex = regexp.MustCompile(`(?i)</?\s*descriptor-data\b[^>]*>`)

const maxDescriptionRunes = 300

// Recommendation is the advice for a single descriptor.
type Recommendation struct {
	Descriptor string   `json:"descriptor"`
	Focus      string   `json:"focus"`
	Activities []string `json:"activities"`
}

// Advice is the parsed model response.
type Advice struct {
	Summary         string           `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
	tmpl  *template.Template
}

type promptData struct {
	Lang        string
	Threshold   float64
	Descriptors []promptDescriptor
}

type promptDescriptor struct {
	ID          string
	Description string
	Correct     int
	Possible    int
	Percentage  float64
}

// New creates a new advisor client. An empty baseURL uses the OpenAI default.
func New(baseURL, apiKey, modelName string) (*Client, error) {
	content, err := promptFS.ReadFile("prompts/advice.txt")
	if err != nil {
		return nil, fmt.Errorf("read prompt: %w", err)
	}
	tmpl, err := template.New("advice").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt: %w", err)
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
		tmpl:  tmpl,
	}, nil
}

// Advise returns recommendations for the given weak descriptors. With no
// weak descriptors it returns an empty Advice without calling the model.
func (c *Client) Advise(ctx context.Context, lang string, threshold float64, weak []model.DescriptorTotal) (*Advice, error) {
	if len(weak) == 0 {
		return &Advice{}, nil
	}
	prompt, err := c.BuildPrompt(lang, threshold, weak)
	if err != nil {
		return nil, err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	var advice Advice
	if err := json.Unmarshal([]byte(raw), &advice); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return &advice, nil
}

// BuildPrompt renders the system prompt for the given descriptors.
func (c *Client) BuildPrompt(lang string, threshold float64, weak []model.DescriptorTotal) (string, error) {
	data := promptData{Lang: lang, Threshold: threshold}
	for _, d := range weak {
		data.Descriptors = append(data.Descriptors, promptDescriptor{
			ID:          d.Descriptor,
			Description: sanitizeText(d.Description),
			Correct:     d.Correct,
			Possible:    d.TotalPossible,
			Percentage:  d.Percentage,
		})
	}
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

func sanitizeText(s string) string {
	s = dataTagRegex.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxDescriptionRunes {
		s = string([]rune(s)[:maxDescriptionRunes]) + "..."
	}
	return s
}
