package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/elys-network/yield-vault/internal/allocator"
	"github.com/elys-network/yield-vault/internal/analyzer"
	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/config"
	"github.com/elys-network/yield-vault/internal/logger"
	"github.com/elys-network/yield-vault/internal/state"
	"github.com/elys-network/yield-vault/internal/types"
	"github.com/elys-network/yield-vault/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

const (
	defaultCycleLimit = 20
	maxCycleLimit     = 100
	defaultPerfWindow = 30 * 24 * time.Hour
	hoursPerYear      = 365 * 24
)

// Store is the history the API serves.
type Store interface {
	Events(ctx context.Context, f state.EventFilter) ([]types.Event, error)
	RecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error)
	LatestCycle(ctx context.Context) (types.CycleSnapshot, error)
	PerformanceSummary(ctx context.Context) (state.PerformanceSummary, error)
	SharePriceHistory(ctx context.Context, since time.Time) ([]analyzer.SharePricePoint, error)
}

// SnapshotSource captures the live vault state, usually the keeper.
type SnapshotSource interface {
	Snapshot() (types.VaultSnapshot, error)
}

// allocatorView is what /api/vault reports about the bound strategy.
type allocatorView interface {
	AllocationPercentages() (allocator.Allocation, error)
	Stats() allocator.Stats
	AutoCompoundConfig() allocator.AutoCompoundConfig
	PendingRewards() sdkmath.Int
}

// Config wires a WebServer. DB is optional and only used by the health check.
type Config struct {
	Port      string
	Chain     *chain.Chain
	Ledger    *vault.Ledger
	Bank      *chain.Bank
	Snapshots SnapshotSource
	Store     Store
	DB        *sql.DB
}

// WebServer serves the vault's live state and history as JSON.
type WebServer struct {
	router    *mux.Router
	port      string
	chain     *chain.Chain
	ledger    *vault.Ledger
	bank      *chain.Bank
	snapshots SnapshotSource
	store     Store
	db        *sql.DB
	started   time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) (*WebServer, error) {
	if cfg.Chain == nil || cfg.Ledger == nil || cfg.Bank == nil || cfg.Snapshots == nil || cfg.Store == nil {
		return nil, errors.New("web server requires chain, ledger, bank, snapshot source and store")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	server := &WebServer{
		router:    mux.NewRouter(),
		port:      cfg.Port,
		chain:     cfg.Chain,
		ledger:    cfg.Ledger,
		bank:      cfg.Bank,
		snapshots: cfg.Snapshots,
		store:     cfg.Store,
		db:        cfg.DB,
		started:   time.Now(),
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/vault", ws.handleGetVault).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/venues", ws.handleGetVenues).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/accounts/{address}", ws.handleGetAccount).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/events", ws.handleGetEvents).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/performance", ws.handleGetPerformance).Methods(http.MethodGet, http.MethodOptions)

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler { return ws.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		webLogger.Info().Msg("Shutting down web server")
		return server.Shutdown(shutdownCtx)
	}
}

// handleHealth reports process stats, the database and the last keeper cycle.
// A failed last cycle or an unreachable database degrades the status.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var hasErrors bool
	cycleInfo := map[string]interface{}{
		"current_cycle":     0,
		"last_cycle_time":   nil,
		"last_cycle_status": "none",
		"actions":           []string{},
	}
	cycle, err := ws.store.LatestCycle(r.Context())
	switch {
	case err == nil:
		status := "completed"
		if cycle.Error != "" {
			status = "failed"
			hasErrors = true
		}
		cycleInfo = map[string]interface{}{
			"current_cycle":     cycle.CycleNumber,
			"last_cycle_time":   cycle.Timestamp,
			"last_cycle_status": status,
			"actions":           cycle.Actions,
		}
	case !errors.Is(err, state.ErrNotFound):
		webLogger.Error().Err(err).Msg("Failed to read latest cycle for health check")
		hasErrors = true
	}

	dbStatus := "disabled"
	if ws.db != nil {
		dbStatus = "ok"
		if err := state.TestDBConnection(ws.db); err != nil {
			dbStatus = "unreachable"
			hasErrors = true
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "yield-vault",
			"version": "1.0.0",
		},
		"vault_status": map[string]interface{}{
			"database":   dbStatus,
			"cycle_info": cycleInfo,
		},
	}
	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetVault returns the live vault snapshot with ledger settings and
// allocator state.
func (ws *WebServer) handleGetVault(w http.ResponseWriter, r *http.Request) {
	snap, err := ws.snapshots.Snapshot()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to capture vault snapshot")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to read vault state")
		return
	}

	response := map[string]interface{}{
		"asset":       ws.ledger.Asset(),
		"snapshot":    snap,
		"blended_apy": analyzer.BlendedAPY(snap.Venues),
	}
	err = ws.chain.View(func(time.Time) error {
		response["performance_fee_bps"] = ws.ledger.PerformanceFeeBps()
		response["fee_recipient"] = ws.ledger.FeeRecipient()
		response["last_harvest"] = ws.ledger.LastHarvest()
		if s := ws.ledger.Strategy(); s != nil {
			response["strategy"] = s.Address()
			if av, ok := s.(allocatorView); ok {
				alloc, err := av.AllocationPercentages()
				if err != nil {
					return err
				}
				response["allocation"] = alloc
				response["stats"] = av.Stats()
				response["auto_compound"] = av.AutoCompoundConfig()
				response["pending_rewards"] = av.PendingRewards()
			}
		}
		return nil
	})
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to read allocator state")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to read allocator state")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetVenues returns venue balances and annualised rates.
func (ws *WebServer) handleGetVenues(w http.ResponseWriter, r *http.Request) {
	snap, err := ws.snapshots.Snapshot()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to capture vault snapshot")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to read venues")
		return
	}
	response := map[string]interface{}{
		"venues":      snap.Venues,
		"blended_apy": analyzer.BlendedAPY(snap.Venues),
		"weights":     snap.Weights,
		"profile":     snap.Profile,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetAccount returns an account's shares, their asset value and its
// wallet balance of the vault asset.
func (ws *WebServer) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if err := config.ValidateAddress(address); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid address")
		return
	}
	addr := types.Address(address)

	response := map[string]interface{}{"address": addr}
	err := ws.chain.View(func(time.Time) error {
		shares := ws.ledger.BalanceOf(addr)
		assets, err := ws.ledger.ConvertToAssets(shares)
		if err != nil {
			return err
		}
		maxWithdraw, err := ws.ledger.MaxWithdraw(addr)
		if err != nil {
			return err
		}
		response["shares"] = shares
		response["assets"] = assets
		response["max_withdraw"] = maxWithdraw
		response["wallet_balance"] = ws.bank.Coin(ws.bank.BalanceOf(addr))
		return nil
	})
	if err != nil {
		webLogger.Error().Err(err).Str("address", address).Msg("Failed to read account")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to read account")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetCycles returns the most recent keeper cycles
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := defaultCycleLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= maxCycleLimit {
			limit = parsedLimit
		}
	}

	cycles, err := ws.store.RecentCycles(r.Context(), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent cycles")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
		return
	}

	response := map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetLatestCycle returns the most recent cycle
func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := ws.store.LatestCycle(r.Context())
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
			return
		}
		webLogger.Error().Err(err).Msg("Failed to get latest cycle")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve latest cycle")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetEvents filters committed events by kind, account and time.
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := state.EventFilter{
		Kind:    types.EventKind(q.Get("kind")),
		Account: types.Address(q.Get("account")),
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	events, err := ws.store.Events(r.Context(), filter)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// handleGetPerformance returns the cycle summary plus share price return and
// volatility over a window (default 30 days, ?window=168h).
func (ws *WebServer) handleGetPerformance(w http.ResponseWriter, r *http.Request) {
	window := defaultPerfWindow
	if s := r.URL.Query().Get("window"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "window must be a positive duration")
			return
		}
		window = d
	}

	summary, err := ws.store.PerformanceSummary(r.Context())
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get performance summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve performance metrics")
		return
	}
	points, err := ws.store.SharePriceHistory(r.Context(), ws.chain.Now().Add(-window))
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get share price history")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve performance metrics")
		return
	}

	response := map[string]interface{}{
		"summary":           summary,
		"window":            window.String(),
		"observations":      len(points),
		"annualized_return": nil,
		"volatility":        nil,
	}
	if ret, err := analyzer.AnnualizedReturn(points); err == nil {
		response["annualized_return"] = ret
	}
	if periods := periodsPerYear(points); periods > 0 {
		if vol, err := analyzer.CalculateVolatility(points, periods); err == nil {
			response["volatility"] = vol
		}
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// periodsPerYear derives the annualization factor from the mean spacing of
// the observations.
func periodsPerYear(points []analyzer.SharePricePoint) float64 {
	if len(points) < 2 {
		return 0
	}
	span := points[len(points)-1].Timestamp.Sub(points[0].Timestamp).Hours()
	if span <= 0 {
		return 0
	}
	mean := span / float64(len(points)-1)
	p := hoursPerYear / mean
	if math.IsInf(p, 0) || math.IsNaN(p) {
		return 0
	}
	return p
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remoteAddr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
