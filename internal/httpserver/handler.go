package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/davidbz/marketmatch/internal/domain"
	"github.com/davidbz/marketmatch/internal/observability"
	"go.uber.org/zap"
)

// Handler handles HTTP requests.
type Handler struct {
	matcher *domain.MatcherService
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(matcher *domain.MatcherService) *Handler {
	return &Handler{
		matcher: matcher,
	}
}

// similarResponse is the /v1/similar payload.
type similarResponse struct {
	Query   string                   `json:"query"`
	Results []domain.SimilarQuestion `json:"results"`
}

// HandleSimilar serves similarity queries.
func (h *Handler) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		http.Error(w, "query parameter is required", http.StatusBadRequest)
		return
	}

	opts, err := parseSearchOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger := observability.FromContext(ctx)
	logger.Info("similarity request received",
		zap.Int("n_results", opts.NResults),
		zap.Float64("min_similarity", opts.MinSimilarity),
	)

	results, err := h.matcher.FindSimilarQuestions(ctx, query, opts)
	if err != nil {
		logger.Error("similarity request failed", zap.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if results == nil {
		results = []domain.SimilarQuestion{}
	}

	writeJSON(w, logger, similarResponse{Query: query, Results: results})
}

// HandleMarkets serves the canonical market table, refreshing it when stale.
func (h *Handler) HandleMarkets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logger := observability.FromContext(ctx)

	markets, err := h.matcher.Markets(ctx)
	if err != nil {
		logger.Error("market table request failed", zap.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if markets == nil {
		markets = []domain.MarketRecord{}
	}

	writeJSON(w, logger, markets)
}

// HandleHealth responds to health checks.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func parseSearchOptions(r *http.Request) (*domain.SearchOptions, error) {
	opts := &domain.SearchOptions{
		NResults:      domain.DefaultNResults,
		MinSimilarity: domain.DefaultMinSimilarity,
	}

	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, errors.New("n must be a positive integer")
		}
		opts.NResults = n
	}
	if raw := r.URL.Query().Get("min_similarity"); raw != "" {
		minSim, err := strconv.ParseFloat(raw, 64)
		if err != nil || minSim < 0 || minSim > 1 {
			return nil, errors.New("min_similarity must be a number in [0,1]")
		}
		opts.MinSimilarity = minSim
	}
	return opts, nil
}

// statusFor maps domain errors onto HTTP statuses. All-sources-down is a
// dependency outage, not a server bug.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrAllSourcesFailed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
