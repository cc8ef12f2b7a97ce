// Package llm adapts a Gemini model to the classifier, extractor and summarizer
// roles of the message workflow.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// generator sends one prompt and returns the raw text answer.
// A nil schema asks for free text.
type generator interface {
	Generate(ctx context.Context, system, prompt string, schema *genai.Schema) (string, error)
}

type genaiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

func (g *genaiGenerator) Generate(ctx context.Context, system, prompt string, schema *genai.Schema) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
	}
	if schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("empty model response")
	}
	return text, nil
}

// Client implements the classifier, extractor and summarizer on one model.
type Client struct {
	gen     generator
	prompts *Prompts
	mode    string
	timeout time.Duration
	logger  *logrus.Logger
}

type Options struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Mode    string
	Prompts *Prompts
	Logger  *logrus.Logger
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("LLM_API_KEY is required")
	}
	if opts.Prompts == nil {
		return nil, errors.New("prompts are required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newClient(&genaiGenerator{client: gc, model: opts.Model, temperature: 0.3}, opts), nil
}

func newClient(gen generator, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		gen:     gen,
		prompts: opts.Prompts,
		mode:    opts.Mode,
		timeout: opts.Timeout,
		logger:  logger,
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 150 {
		return string(r[:150]) + "..."
	}
	return s
}
