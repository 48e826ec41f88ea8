package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spendlens/spendlens-go/internal/domain"
	"github.com/spendlens/spendlens-go/internal/handler"
	"github.com/spendlens/spendlens-go/internal/infra/cache"
	"github.com/spendlens/spendlens-go/internal/infra/observability"
	"github.com/spendlens/spendlens-go/internal/service"
)

const uploadCSV = `date,time,amount,merchant,txn_type,category,city,payment_mode
2025-07-01,10:00:00,349,Jio,debit,Recharge,Pune,UPI
2025-07-01,10:02:00,349,Jio,debit,Recharge,Pune,UPI
2025-07-02,19:45:00,9000,Croma,debit,Electronics,Pune,Card
2025-07-03,12:00:00,180,Uber,debit,Transport,Goa,UPI
2025-07-04,13:00:00,250,Swiggy,debit,Food,Pune,UPI
`

type mockFeed struct {
	txns []domain.Transaction
	err  error
}

func (m *mockFeed) Snapshot(_ context.Context) ([]domain.Transaction, error) {
	return m.txns, m.err
}

type mockSink struct {
	inserted []domain.Transaction
	err      error
}

func (m *mockSink) Insert(_ context.Context, t domain.Transaction) error {
	if m.err != nil {
		return m.err
	}
	m.inserted = append(m.inserted, t)
	return nil
}

type mockCompleter struct {
	response *domain.CompletionResponse
	err      error
}

func (m *mockCompleter) Complete(_ context.Context, _ []domain.ChatMessage) (*domain.CompletionResponse, error) {
	return m.response, m.err
}

func newTestRouter(t *testing.T, feed *mockFeed, sink *mockSink, completer *mockCompleter) (http.Handler, *service.Analysis) {
	t.Helper()

	metrics := observability.NewMetrics()
	analysis := service.NewAnalysis(
		service.DetectionConfig{
			HomeCity:        "Pune",
			DupWindow:       3 * time.Minute,
			SpikeMultiplier: 10,
			Catalog:         domain.DefaultPlanCatalog(),
		},
		cache.New[*domain.AnalysisReport](time.Minute),
		metrics,
		zap.NewNop(),
	)
	advisor := service.NewAdvisor(completer, analysis, metrics, zap.NewNop())

	deps := handler.Deps{
		Analysis: analysis,
		Advisor:  advisor,
		HomeCity: "Pune",
		Metrics:  metrics,
		Logger:   zap.NewNop(),
	}
	if feed != nil {
		deps.Feed = feed
	}
	if sink != nil {
		deps.Sink = sink
	}
	return handler.NewRouter(deps), analysis
}

func uploadRequest(t *testing.T, csv string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "ledger.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(csv)); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/ledger/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadThenAnalysis(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil, &mockCompleter{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, uploadCSV))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var uploadResp struct {
		SnapshotID       string `json:"snapshot_id"`
		TransactionCount int    `json:"transaction_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &uploadResp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if uploadResp.SnapshotID == "" || uploadResp.TransactionCount != 5 {
		t.Errorf("unexpected upload response %+v", uploadResp)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/analysis", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("analysis: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var report domain.AnalysisReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TransactionCount != 5 {
		t.Errorf("expected 5 transactions, got %d", report.TransactionCount)
	}
	if len(report.Duplicates) != 2 {
		t.Errorf("expected 2 duplicates, got %d", len(report.Duplicates))
	}
	if len(report.Spikes) != 1 {
		t.Errorf("expected 1 spike, got %d", len(report.Spikes))
	}
	if len(report.OutOfCity) != 1 {
		t.Errorf("expected 1 out-of-city txn, got %d", len(report.OutOfCity))
	}
}

func TestAnalysis_NoLedgerIs404(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil, &mockCompleter{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/analysis", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpload_BadSchemaIs400(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil, &mockCompleter{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "date,merchant\n2025-07-01,Jio\n"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "amount") {
		t.Errorf("expected the missing columns in the error, got %s", rec.Body.String())
	}
}

func TestUpload_MissingFileFieldIs400(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil, &mockCompleter{})

	req := httptest.NewRequest(http.MethodPost, "/v1/ledger/upload", strings.NewReader("not multipart"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAnomalyRoutes(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil, &mockCompleter{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, uploadCSV))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d", rec.Code)
	}

	for path, wantCount := range map[string]int{
		"/v1/anomalies/duplicates":  2,
		"/v1/anomalies/spikes":      1,
		"/v1/anomalies/out-of-city": 1,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		var resp struct {
			Count        int                  `json:"count"`
			Transactions []domain.Transaction `json:"transactions"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
		if resp.Count != wantCount || len(resp.Transactions) != wantCount {
			t.Errorf("%s: expected %d, got %d", path, wantCount, resp.Count)
		}
	}
}

func TestRefreshFromFeed(t *testing.T) {
	feed := &mockFeed{txns: []domain.Transaction{
		{ID: "f-1", Timestamp: time.Now().UTC(), Amount: 100, Merchant: "Swiggy",
			Category: "Food", City: "Pune", TxnType: domain.TxnDebit},
	}}
	router, _ := newTestRouter(t, feed, nil, &mockCompleter{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ledger/refresh", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/analysis", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after refresh, got %d", rec.Code)
	}
}

func TestRefresh_NoFeedIs503(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil, &mockCompleter{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ledger/refresh", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestAdvisorRoute(t *testing.T) {
	resp := &domain.CompletionResponse{
		Model: "deepseek/deepseek-r1:free",
		Usage: domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
	resp.Choices = append(resp.Choices, struct {
		Message domain.ChatMessage `json:"message"`
	}{Message: domain.ChatMessage{Role: "assistant", Content: "Spend less on food."}})

	router, _ := newTestRouter(t, nil, nil, &mockCompleter{response: resp})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, uploadCSV))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d", rec.Code)
	}

	body := strings.NewReader(`{"question": "How am I doing?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/advisor", body)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var advResp domain.AdvisorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &advResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if advResp.Answer != "Spend less on food." {
		t.Errorf("unexpected answer %q", advResp.Answer)
	}
}

func TestAdvisor_EmptyQuestionIs400(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil, &mockCompleter{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, uploadCSV))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/advisor", strings.NewReader(`{"question": ""}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDevGenerate(t *testing.T) {
	sink := &mockSink{}
	router, _ := newTestRouter(t, nil, sink, &mockCompleter{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/dev/generate-transactions?count=25", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(sink.inserted) != 25 {
		t.Errorf("expected 25 inserts, got %d", len(sink.inserted))
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t, &mockFeed{}, nil, &mockCompleter{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status domain.HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "healthy" || len(status.Services) != 2 {
		t.Errorf("unexpected health status %+v", status)
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil, &mockCompleter{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
