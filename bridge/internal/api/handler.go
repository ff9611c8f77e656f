package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ContentType is sent with every successful /metrics response.
const ContentType = "text/plain; charset=utf-8"

// Scraper produces one exposition body per call.
type Scraper interface {
	Scrape(ctx context.Context) (string, error)
}

// Options configures the optional routes and the scrape deadline.
type Options struct {
	// ScrapeTimeout narrows the request context for each scrape. Zero keeps
	// only the client's deadline.
	ScrapeTimeout time.Duration

	// TelemetryPath and Telemetry mount the self-metrics handler.
	// Both must be set for the route to exist.
	TelemetryPath string
	Telemetry     http.Handler

	// Health serves /live and /ready when non-nil.
	Health http.Handler
}

// Handler is the bridge's HTTP surface.
type Handler struct {
	scraper Scraper
	timeout time.Duration
	mux     *http.ServeMux
}

// New creates a Handler wired to s and registers all routes.
func New(s Scraper, opts Options) http.Handler {
	h := &Handler{scraper: s, timeout: opts.ScrapeTimeout, mux: http.NewServeMux()}

	h.mux.HandleFunc("/metrics", h.metrics)
	if opts.TelemetryPath != "" && opts.Telemetry != nil {
		h.mux.Handle(opts.TelemetryPath, getOnly(opts.Telemetry))
	}
	if opts.Health != nil {
		h.mux.Handle("/live", getOnly(opts.Health))
		h.mux.Handle("/ready", getOnly(opts.Health))
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// metrics serves GET /metrics. Any query failure answers 500 with no metric
// lines; the body is never partial.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	body, err := h.scraper.Scrape(ctx)
	if err != nil {
		slog.Error("api: scrape failed", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "scrape failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, body); err != nil {
		slog.Debug("api: write response", "remote", r.RemoteAddr, "err", err)
	}
}

func getOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
