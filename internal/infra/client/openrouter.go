package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/spendlens/spendlens-go/internal/domain"
	"github.com/spendlens/spendlens-go/internal/infra/resilience"
)

var tracer = otel.Tracer("client")

// OpenRouterClient calls the OpenRouter chat-completions API.
type OpenRouterClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
}

// NewOpenRouterClient creates a new OpenRouterClient. baseURL is the API
// root, e.g. https://openrouter.ai/api/v1. cfg.MaxConcurrency bounds the
// number of in-flight completions.
func NewOpenRouterClient(httpClient *http.Client, baseURL, apiKey, model string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *OpenRouterClient {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &OpenRouterClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(maxConcurrency),
	}
}

// Complete sends the messages to the configured model and returns the
// completion. Transport and non-200 failures are retried with backoff
// inside the circuit breaker.
func (c *OpenRouterClient) Complete(ctx context.Context, messages []domain.ChatMessage) (*domain.CompletionResponse, error) {
	ctx, span := tracer.Start(ctx, "OpenRouterClient.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.messages", len(messages)),
	)

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrTimeout{Operation: "openrouter completion"}
	}
	defer c.bulkhead.Release()

	var completion domain.CompletionResponse

	result, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(domain.CompletionRequest{
				Model:    c.model,
				Messages: messages,
			})
			if err != nil {
				return err
			}

			url := fmt.Sprintf("%s/chat/completions", c.baseURL)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("completions API returned status %d: %s", resp.StatusCode, snippet)
			}

			return json.NewDecoder(resp.Body).Decode(&completion)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &completion, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &domain.ErrCircuitOpen{Service: "openrouter"}
		}
		return nil, &domain.ErrExternalService{Service: "openrouter", Err: err}
	}

	out := result.(*domain.CompletionResponse)
	if len(out.Choices) == 0 {
		return nil, &domain.ErrExternalService{Service: "openrouter", Err: fmt.Errorf("completion had no choices")}
	}
	return out, nil
}
