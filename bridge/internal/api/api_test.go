package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/api"
	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/pipeline"
	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/query"
	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/telemetry"
	"github.com/obsidianstack/clickhouse-bridge/pkg/types"
)

// --- test helpers -----------------------------------------------------------

type scraperFunc func(ctx context.Context) (string, error)

func (f scraperFunc) Scrape(ctx context.Context) (string, error) { return f(ctx) }

type mapStore map[string][]types.MetricRow

func (s mapStore) Query(_ context.Context, q string) ([]types.MetricRow, error) {
	rows, ok := s[q]
	if !ok {
		return nil, errors.New("Code: 62. DB::Exception: Syntax error")
	}
	return rows, nil
}

func request(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	return request(t, h, http.MethodGet, path)
}

// counterValue returns the counter in mf whose label name has value val.
func counterValue(mf *dto.MetricFamily, name, val string) float64 {
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == name && l.GetValue() == val {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

// --- /metrics ---------------------------------------------------------------

func TestMetrics_Body(t *testing.T) {
	st := mapStore{
		"q1": {{Metric: "a", Value: 1}},
		"q2": {{Metric: "b", Value: 2}, {Metric: "c", Value: 3}},
	}
	p := pipeline.New(query.New(st, []string{"q1", "q2"}), "p", nil)
	h := api.New(p, api.Options{})

	rr := get(t, h, "/metrics")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != api.ContentType {
		t.Errorf("content-type: got %q, want %q", ct, api.ContentType)
	}
	want := "p.system.metrics.a: 1\np.system.metrics.b: 2\np.system.metrics.c: 3\n"
	if got := rr.Body.String(); got != want {
		t.Errorf("body: got %q, want %q", got, want)
	}
}

func TestMetrics_IgnoresQueryParameters(t *testing.T) {
	h := api.New(scraperFunc(func(context.Context) (string, error) {
		return "x.system.metrics.up: 1\n", nil
	}), api.Options{})

	rr := get(t, h, "/metrics?target=other&format=json")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if rr.Body.String() != "x.system.metrics.up: 1\n" {
		t.Errorf("body: got %q", rr.Body.String())
	}
}

func TestMetrics_EmptyBody(t *testing.T) {
	p := pipeline.New(query.New(mapStore{"q": nil}, []string{"q"}), "p", nil)
	rr := get(t, api.New(p, api.Options{}), "/metrics")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("body: got %q, want empty", rr.Body.String())
	}
}

func TestMetrics_QueryFailureIs500WithoutMetrics(t *testing.T) {
	st := mapStore{"good": {{Metric: "a", Value: 1}}}
	p := pipeline.New(query.New(st, []string{"good", "broken"}), "p", nil)
	rr := get(t, api.New(p, api.Options{}), "/metrics")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), ".system.metrics.") {
		t.Errorf("partial metrics leaked into error body: %q", rr.Body.String())
	}
}

func TestMetrics_ScrapeTimeoutAppliesDeadline(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	h := api.New(scraperFunc(func(ctx context.Context) (string, error) {
		deadline, hasDeadline = ctx.Deadline()
		return "", nil
	}), api.Options{ScrapeTimeout: 2 * time.Second})

	before := time.Now()
	get(t, h, "/metrics")

	if !hasDeadline {
		t.Fatal("scrape context has no deadline")
	}
	if d := deadline.Sub(before); d <= 0 || d > 3*time.Second {
		t.Errorf("deadline %v from request start, want about 2s", d)
	}
}

func TestMetrics_NoTimeoutKeepsRequestContext(t *testing.T) {
	var hasDeadline bool
	h := api.New(scraperFunc(func(ctx context.Context) (string, error) {
		_, hasDeadline = ctx.Deadline()
		return "", nil
	}), api.Options{})

	get(t, h, "/metrics")
	if hasDeadline {
		t.Error("unexpected deadline with ScrapeTimeout = 0")
	}
}

func TestMetrics_TimeoutFailsScrape(t *testing.T) {
	h := api.New(scraperFunc(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), api.Options{ScrapeTimeout: 10 * time.Millisecond})

	rr := get(t, h, "/metrics")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	m := telemetry.New()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	h := api.New(scraperFunc(func(context.Context) (string, error) { return "", nil }), api.Options{
		TelemetryPath: "/internal/metrics",
		Telemetry:     m.Handler(),
		Health:        api.NewHealth(m.Registry(), db, time.Second),
	})

	for _, path := range []string{"/metrics", "/internal/metrics", "/live", "/ready"} {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			t.Run(method+" "+path, func(t *testing.T) {
				rr := request(t, h, method, path)
				if rr.Code != http.StatusMethodNotAllowed {
					t.Errorf("status: got %d, want 405", rr.Code)
				}
			})
		}
	}
}

func TestUnknownPath(t *testing.T) {
	h := api.New(scraperFunc(func(context.Context) (string, error) { return "", nil }), api.Options{})

	if rr := get(t, h, "/metrics/extra"); rr.Code != http.StatusNotFound {
		t.Errorf("/metrics/extra: got %d, want 404", rr.Code)
	}
	// Optional routes are absent when not configured.
	if rr := get(t, h, "/ready"); rr.Code != http.StatusNotFound {
		t.Errorf("/ready without health: got %d, want 404", rr.Code)
	}
}

// --- telemetry --------------------------------------------------------------

func TestTelemetry_ReflectsScrapes(t *testing.T) {
	m := telemetry.New()
	queries := []string{"q1", "broken"}
	st := telemetry.InstrumentStore(mapStore{"q1": {{Metric: "a", Value: 1}}}, queries, m)
	p := pipeline.New(query.New(st, queries), "p", m)
	h := api.New(p, api.Options{TelemetryPath: "/internal/metrics", Telemetry: m.Handler()})

	get(t, h, "/metrics")

	rr := get(t, h, "/internal/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	if err != nil {
		t.Fatalf("parse self-metrics: %v", err)
	}

	scrapes := mfs["chbridge_scrapes_total"]
	if scrapes == nil {
		t.Fatal("chbridge_scrapes_total missing")
	}
	if failures := counterValue(scrapes, "result", telemetry.ResultFailure); failures != 1 {
		t.Errorf("failed scrapes: got %v, want 1", failures)
	}

	qerr := mfs["chbridge_query_errors_total"]
	if qerr == nil || len(qerr.GetMetric()) != 1 {
		t.Fatalf("query_errors_total: got %v", qerr)
	}
	if got := qerr.GetMetric()[0].GetLabel()[0].GetValue(); got != "1" {
		t.Errorf("failing query label: got %q, want 1", got)
	}
	if mfs["go_goroutines"] == nil {
		t.Error("go runtime collector not registered")
	}
}

// --- /live, /ready ----------------------------------------------------------

func TestHealth_ReadyWhenClickHouseAnswers(t *testing.T) {
	m := telemetry.New()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectPing()

	h := api.New(scraperFunc(func(context.Context) (string, error) { return "", nil }),
		api.Options{Health: api.NewHealth(m.Registry(), db, time.Second)})

	if rr := get(t, h, "/live"); rr.Code != http.StatusOK {
		t.Errorf("/live: got %d, want 200", rr.Code)
	}
	if rr := get(t, h, "/ready"); rr.Code != http.StatusOK {
		t.Errorf("/ready: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
}

func TestHealth_NotReadyWhenPingFails(t *testing.T) {
	m := telemetry.New()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("dial tcp 127.0.0.1:8123: connect: connection refused"))

	h := api.New(scraperFunc(func(context.Context) (string, error) { return "", nil }),
		api.Options{Health: api.NewHealth(m.Registry(), db, time.Second)})

	if rr := get(t, h, "/ready"); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready: got %d, want 503", rr.Code)
	}
	// Liveness does not depend on ClickHouse.
	if rr := get(t, h, "/live"); rr.Code != http.StatusOK {
		t.Errorf("/live: got %d, want 200", rr.Code)
	}
}
