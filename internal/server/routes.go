package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Portfolios
	mux.HandleFunc("/api/portfolios/", s.routePortfolios)
	mux.HandleFunc("/api/portfolios", s.handlePortfolios)

	// Series across portfolios
	mux.HandleFunc("/api/series", s.handleSeries)

	// Watchlists
	mux.HandleFunc("/api/watchlists/", s.routeWatchlists)

	// Market data
	mux.HandleFunc("/api/market/quote/", s.handleMarketQuote)
	mux.HandleFunc("/api/market/bars/", s.handleMarketBars)
	mux.HandleFunc("/api/market/fx/", s.handleMarketFx)
	mux.HandleFunc("/api/market/rates", s.handleMarketRates)
	mux.HandleFunc("/api/market/refresh", s.handleMarketRefresh)

	// Cache administration
	mux.HandleFunc("/api/cache/clear", s.handleCacheClear)
}

// routePortfolios dispatches /api/portfolios/{id}/* to the appropriate handler.
func (s *Server) routePortfolios(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/portfolios/")
	if len(parts) == 0 {
		s.handlePortfolios(w, r)
		return
	}

	id := parts[0]
	switch {
	case len(parts) == 1:
		s.handlePortfolioGet(w, r, id)
	case parts[1] == "valuation" && len(parts) == 2:
		s.handlePortfolioValuation(w, r, id)
	case parts[1] == "lots" && len(parts) == 2:
		s.handleLotAdd(w, r, id)
	case parts[1] == "lots" && len(parts) == 4:
		s.handleLotItem(w, r, id, parts[2], parts[3])
	case parts[1] == "cash" && len(parts) == 2:
		s.handleCash(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeWatchlists dispatches /api/watchlists/{name}.
func (s *Server) routeWatchlists(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/watchlists/")
	if len(parts) != 1 {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	s.handleWatchlist(w, r, parts[0])
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uptime := time.Since(s.app.StartupTime).Round(time.Second)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":      s.app.Config.Environment,
		"ledger_path":      s.app.Config.Storage.Ledger.Path,
		"cache_path":       s.app.Config.Storage.Cache.Path,
		"logging_level":    s.app.Config.Logging.Level,
		"provider_chain":   s.app.Config.Clients.Chain,
		"eodhd_configured": s.app.Config.Clients.EODHD.APIKey != "",
		"uptime":           uptime.String(),
		"started_at":       s.app.StartupTime,
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// errStatus maps a service error to an HTTP status code.
func errStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNoDataAvailable), errors.Is(err, models.ErrProviderUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrMalformedLedgerState):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
