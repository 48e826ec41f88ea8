package domain

import "time"

// Transaction types.
const (
	TxnDebit  = "debit"
	TxnCredit = "credit"
)

// CategoryRecharge is the ledger category the recharge tracker filters on.
const CategoryRecharge = "Recharge"

// Transaction is one row of the ledger after ingestion. The date and time
// columns of the source are already combined into Timestamp; PaymentMode is
// empty for sources that do not carry the column (e.g. the live feed).
type Transaction struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Amount      float64   `json:"amount"`
	Merchant    string    `json:"merchant"`
	Category    string    `json:"category"`
	City        string    `json:"city"`
	TxnType     string    `json:"txn_type"` // debit, credit
	PaymentMode string    `json:"payment_mode,omitempty"`
}

// ActiveRecharge is a prepaid plan that is still valid at evaluation time.
type ActiveRecharge struct {
	Merchant      string    `json:"merchant"`
	Amount        float64   `json:"amount"`
	StartDate     time.Time `json:"start_date"`
	DueDate       time.Time `json:"due_date"`
	ValidityDays  int       `json:"validity_days"`
	DaysRemaining int       `json:"days_remaining"`
}

// PlanCatalog maps a recharge plan price to its validity in days.
// Injected into the tracker so operators' price changes are a config
// update, not a code change.
type PlanCatalog map[float64]int

// DefaultPlanCatalog returns the built-in prepaid plan table. Callers that
// need per-user pricing load their own catalog instead.
func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		149: 20, 199: 28, 239: 28, 299: 28, 349: 28, 399: 28,
		179: 28, 269: 28,
		187: 28, 247: 28, 319: 28,
	}
}

// ============================================================
// Analysis report
// ============================================================

// AnalysisReport bundles the output of every detector over one snapshot.
type AnalysisReport struct {
	SnapshotID       string           `json:"snapshot_id"`
	GeneratedAt      time.Time        `json:"generated_at"`
	TransactionCount int              `json:"transaction_count"`
	Duplicates       []Transaction    `json:"duplicates"`
	Spikes           []Transaction    `json:"spikes"`
	OutOfCity        []Transaction    `json:"out_of_city"`
	ActiveRecharges  []ActiveRecharge `json:"active_recharges"`
	Insights         *InsightReport   `json:"insights"`
}

// ============================================================
// Insights
// ============================================================

// MerchantSpend is total spend attributed to one merchant.
type MerchantSpend struct {
	Merchant string  `json:"merchant"`
	Total    float64 `json:"total"`
}

// CitySpend is total spend attributed to one city.
type CitySpend struct {
	City  string  `json:"city"`
	Total float64 `json:"total"`
}

// MonthSpend is total spend in one calendar month ("2006-01").
type MonthSpend struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// InsightReport holds the scalar facts the dashboard cards and the advisor
// prompt are built from.
type InsightReport struct {
	TotalSpend         float64         `json:"total_spend"`
	TopCategory        string          `json:"top_category"`
	TopCategoryPct     float64         `json:"top_category_pct"`
	TopMerchants       []MerchantSpend `json:"top_merchants"`
	TopCities          []CitySpend     `json:"top_cities"`
	MonthlySpend       []MonthSpend    `json:"monthly_spend"`
	PeakMonth          string          `json:"peak_month"`
	PeakDay            string          `json:"peak_day"`  // weekday name
	PeakHour           int             `json:"peak_hour"` // 0-23
	MostFrequentAmount float64         `json:"most_frequent_amount"`
	TopPaymentMode     string          `json:"top_payment_mode,omitempty"`
	Lines              []string        `json:"lines"`
}

// ============================================================
// Advisor
// ============================================================

// AdvisorRequest is the body of POST /v1/advisor.
type AdvisorRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// AdvisorResponse is the advisor's answer plus the insight lines that were
// sent as prompt context.
type AdvisorResponse struct {
	ConversationID string      `json:"conversation_id"`
	Answer         string      `json:"answer"`
	Model          string      `json:"model"`
	Insights       []string    `json:"insights"`
	TokensUsed     TokenUsage  `json:"tokens_used"`
	LatencyMs      int64       `json:"latency_ms"`
	GeneratedAt    time.Time   `json:"generated_at"`
}

// TokenUsage mirrors the completion API's usage block.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatMessage is one message in a completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the payload sent to the chat-completions API.
type CompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// CompletionResponse is the subset of the chat-completions reply we consume.
type CompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage TokenUsage `json:"usage"`
}

// ============================================================
// Health
// ============================================================

// ServiceHealth reports one dependency's status in /healthz.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"` // healthy, degraded, unhealthy
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
}

// HealthStatus is the /healthz response.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}

// AdvisorMetrics is the snapshot returned by GET /v1/metrics/advisor.
type AdvisorMetrics struct {
	TotalRequests       int64   `json:"total_requests"`
	ErrorRate           float64 `json:"error_rate"`
	AvgTokensPerRequest float64 `json:"avg_tokens_per_request"`
	CacheHitRate        float64 `json:"cache_hit_rate"`
	Period              string  `json:"period"`
}
