package content

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-1.5-flash"

	defaultGenerateTimeout = 30 * time.Second
)

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

var _ Generator = (*GeminiGenerator)(nil)

// GeminiGenerator calls the Gemini generateContent REST endpoint.
type GeminiGenerator struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	logger   *zap.Logger
}

func NewGeminiGenerator(cfg GeminiConfig, logger *zap.Logger) (*GeminiGenerator, error) {
	client := resty.New()
	client.SetTimeout(defaultGenerateTimeout)
	return NewGeminiGeneratorWithClient(cfg, client, logger)
}

func NewGeminiGeneratorWithClient(cfg GeminiConfig, client *resty.Client, logger *zap.Logger) (*GeminiGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid gemini base url: %w", err)
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGenerateTimeout)
	}
	client.SetRetryCount(0)

	return &GeminiGenerator{
		client:   client,
		endpoint: fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, url.PathEscape(model)),
		apiKey:   cfg.APIKey,
		logger:   logger,
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, kind domain.PromptKind) (string, error) {
	prompt, ok := PromptFor(kind)
	if !ok {
		return "", fmt.Errorf("%w: unknown prompt kind %q", domain.ErrContentGeneration, kind)
	}

	var out geminiResponse
	started := time.Now()
	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", g.apiKey).
		SetBody(geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}).
		SetResult(&out).
		Post(g.endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %w", domain.ErrContentGeneration, err)
	}
	if response.StatusCode() < http.StatusOK || response.StatusCode() >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: gemini returned status %d: %s",
			domain.ErrContentGeneration, response.StatusCode(), strings.TrimSpace(response.String()))
	}

	text := firstCandidateText(out)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", domain.ErrContentGeneration)
	}

	g.logger.Debug("content generated",
		zap.String("promptKind", kind.String()),
		zap.Int("length", len(text)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return text, nil
}

func firstCandidateText(resp geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}
