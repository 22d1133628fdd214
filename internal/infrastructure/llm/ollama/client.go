package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/resilience"
)

// Oracle maps raw spreadsheet headers to canonical business labels using a
// local Ollama model. Every failure, from transport errors to unparseable
// model output, surfaces as a domain.ErrOracleUnavailable kind so callers
// degrade to offline verification instead of aborting.
type Oracle struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	RequestTimeout time.Duration
	Executor       *resilience.Executor
}

func New(baseURL, genModel string, options Options) *Oracle {
	timeout := options.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Oracle{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.Executor,
	}
}

func (o *Oracle) Enhance(ctx context.Context, rawHeader string, octx domain.OracleContext) (domain.Enhancement, error) {
	prompt := buildEnhancementPrompt(rawHeader, octx)

	var enhancement domain.Enhancement
	call := func(ctx context.Context) error {
		raw, err := o.generateJSON(ctx, prompt)
		if err != nil {
			return err
		}
		parsed, err := parseEnhancement(raw)
		if err != nil {
			return err
		}
		enhancement = parsed
		return nil
	}

	var err error
	if o.executor != nil {
		err = o.executor.Execute(ctx, "ollama.enhance", call, classifyOracleError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.Enhancement{}, domain.WrapError(domain.ErrOracleUnavailable, "enhance header", err)
	}
	return enhancement, nil
}

func (o *Oracle) generateJSON(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model":  o.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := o.postJSON(ctx, "/api/generate", request, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func parseEnhancement(raw string) (domain.Enhancement, error) {
	var result domain.Enhancement
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		return domain.Enhancement{}, fmt.Errorf("parse enhancement json: %w", err)
	}
	result.Label = strings.TrimSpace(result.Label)
	if result.Label == "" {
		return domain.Enhancement{}, fmt.Errorf("enhancement without label")
	}
	return result, nil
}

// extractJSONObject trims chatter around the outermost JSON object. Models
// occasionally wrap the object in prose even with format=json.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
