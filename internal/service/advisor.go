package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spendlens/spendlens-go/internal/domain"
	"github.com/spendlens/spendlens-go/internal/infra/observability"
	"github.com/spendlens/spendlens-go/internal/port"
)

const advisorSystemPrompt = "You are a helpful financial assistant."

// Advisor answers free-form questions about the ledger. Each question is
// grounded with the current insight lines so the model sees real numbers
// instead of the raw table.
type Advisor struct {
	completer port.ChatCompleter
	analysis  *Analysis
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAdvisor creates the advisor service with all dependencies injected.
func NewAdvisor(
	completer port.ChatCompleter,
	analysis *Analysis,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Advisor {
	return &Advisor{
		completer: completer,
		analysis:  analysis,
		metrics:   metrics,
		logger:    logger,
	}
}

// Ask grounds the question with the current insights and asks the model.
func (a *Advisor) Ask(ctx context.Context, req *domain.AdvisorRequest) (*domain.AdvisorResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, &domain.ErrValidation{Field: "question", Message: "must not be empty"}
	}

	ctx, span := tracer.Start(ctx, "Advisor.Ask")
	defer span.End()

	insights, err := a.analysis.Insights(ctx)
	if err != nil {
		return nil, err
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	messages := []domain.ChatMessage{
		{Role: "system", Content: advisorSystemPrompt},
		{Role: "user", Content: buildAdvisorPrompt(insights.Lines, req.Question)},
	}

	start := time.Now()
	completion, err := a.completer.Complete(ctx, messages)
	latency := time.Since(start)
	a.metrics.RecordAnalysisDuration("advisor", latency)

	if err != nil {
		a.logger.Error("advisor completion failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		a.metrics.IncrExternalError("openrouter")
		a.metrics.IncrAdvisorRequest("error")
		return nil, err
	}

	a.metrics.IncrAdvisorRequest("success")
	a.metrics.RecordTokens(completion.Usage.PromptTokens, completion.Usage.CompletionTokens)

	return &domain.AdvisorResponse{
		ConversationID: conversationID,
		Answer:         completion.Choices[0].Message.Content,
		Model:          completion.Model,
		Insights:       insights.Lines,
		TokensUsed:     completion.Usage,
		LatencyMs:      latency.Milliseconds(),
		GeneratedAt:    time.Now(),
	}, nil
}

func buildAdvisorPrompt(lines []string, question string) string {
	var b strings.Builder
	b.WriteString("Here is a summary of my recent UPI spending:\n")
	if len(lines) == 0 {
		b.WriteString("- (no transactions loaded yet)\n")
	}
	for _, line := range lines {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
