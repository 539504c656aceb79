package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/askdb/askdb/internal/auth"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/pipeline"
	"github.com/askdb/askdb/internal/safety"
	"github.com/askdb/askdb/internal/schema"
)

// fakePipeline implements AskPipeline with canned replies and call
// recording.
type fakePipeline struct {
	outcome      pipeline.Outcome
	askErr       error
	translated   nl2sql.Result
	trErr        error
	askCalls     int
	trCalls      int
	lastQuestion string
}

func (f *fakePipeline) Ask(_ context.Context, question string) (pipeline.Outcome, error) {
	f.askCalls++
	f.lastQuestion = question
	return f.outcome, f.askErr
}

func (f *fakePipeline) TranslateOnly(_ context.Context, question string) (nl2sql.Result, error) {
	f.trCalls++
	f.lastQuestion = question
	return f.translated, f.trErr
}

type fakeInspector struct {
	tables []schema.Table
	err    error
}

func (f *fakeInspector) Tables(_ context.Context) ([]schema.Table, error) {
	return f.tables, f.err
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func testConfig(t *testing.T, values map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("askdb-api", mapLookup(values))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rr.Body.String())
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["service"] != "askdb-api" {
		t.Fatalf("service = %v", body["service"])
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{
		Readiness: func(_ context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "NOT_READY" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
	if body["retryable"] != true {
		t.Fatalf("retryable = %v", body["retryable"])
	}
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	h := NewHandler(testConfig(t, map[string]string{"ASKDB_AUTH_REQUIRED": "true"}), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	cfg := testConfig(t, map[string]string{"ASKDB_AUTH_REQUIRED": "true"})
	validator, err := auth.NewStaticAPIKeyValidator("k1:analyst-1:translate")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Schema: &fakeInspector{tables: []schema.Table{
			{Name: "orders", Columns: []schema.Column{{Name: "id", DataType: "bigint"}}},
		}},
	})

	unauthResp := httptest.NewRecorder()
	h.ServeHTTP(unauthResp, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if unauthResp.Code != http.StatusUnauthorized {
		t.Fatalf("unauth status = %d", unauthResp.Code)
	}

	authReq := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	authReq.Header.Set("X-API-Key", "k1")
	authResp := httptest.NewRecorder()
	h.ServeHTTP(authResp, authReq)
	if authResp.Code != http.StatusOK {
		t.Fatalf("auth status = %d, body = %s", authResp.Code, authResp.Body.String())
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func TestCheckObjectStoreConfig(t *testing.T) {
	disabled := testConfig(t, nil)
	if err := CheckObjectStoreConfig(disabled)(context.Background()); err != nil {
		t.Fatalf("disabled store check error = %v", err)
	}

	enabled := testConfig(t, map[string]string{
		"ASKDB_OBJECTSTORE_ENABLED": "true",
		"ASKDB_OBJECTSTORE_BUCKET":  "",
	})
	if err := CheckObjectStoreConfig(enabled)(context.Background()); err == nil {
		t.Fatal("expected missing bucket error")
	}
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind pipeline.Kind
		want int
	}{
		{pipeline.KindInvalidInput, http.StatusBadRequest},
		{pipeline.KindUnsafeStatement, http.StatusBadRequest},
		{pipeline.KindExecutionFailed, http.StatusBadRequest},
		{pipeline.KindTranslationFailed, http.StatusBadGateway},
		{pipeline.KindConnectionFailed, http.StatusServiceUnavailable},
		{pipeline.KindTimeout, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := statusForKind(tt.kind); got != tt.want {
				t.Fatalf("statusForKind(%s) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func TestWritePipelineErrorIncludesStageAndKeyword(t *testing.T) {
	err := &pipeline.Error{
		Stage:   pipeline.StageValidate,
		Kind:    pipeline.KindUnsafeStatement,
		Message: "statement violates read-only policy",
		Err:     &safety.ViolationError{Keyword: "DROP", Reason: "denylisted"},
	}

	rr := httptest.NewRecorder()
	writePipelineError(context.Background(), rr, err)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "UNSAFE_STATEMENT" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
	if body["retryable"] != false {
		t.Fatalf("retryable = %v", body["retryable"])
	}
	extra, ok := body["context"].(map[string]any)
	if !ok {
		t.Fatalf("context = %#v", body["context"])
	}
	if extra["stage"] != "validate" || extra["keyword"] != "DROP" {
		t.Fatalf("context = %#v", extra)
	}
}
