package server

import (
	"net/http"
	"strings"

	"github.com/bobmcallan/folio/internal/models"
)

// handleMarketQuote handles GET /api/market/quote/{symbol}.
func (s *Server) handleMarketQuote(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, "/api/market/quote/")
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}

	quote, err := s.app.MarketService.FetchCurrentPrice(r.Context(), symbol)
	if err != nil {
		WriteError(w, errStatus(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, quote)
}

// handleMarketBars handles GET /api/market/bars/{symbol}?range=1y.
func (s *Server) handleMarketBars(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, "/api/market/bars/")
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}

	rng := models.BarRange(r.URL.Query().Get("range"))
	if rng == "" {
		rng = models.RangeYear
	}

	bars, err := s.app.MarketService.FetchHistoricalBars(r.Context(), symbol, rng)
	if err != nil {
		WriteError(w, errStatus(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": strings.ToUpper(symbol),
		"range":  rng,
		"bars":   bars,
		"count":  len(bars),
	})
}

// handleMarketFx handles GET /api/market/fx/{from}/{to}.
func (s *Server) handleMarketFx(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	parts := pathParts(r, "/api/market/fx/")
	if len(parts) != 2 {
		WriteError(w, http.StatusBadRequest, "path must be /api/market/fx/{from}/{to}")
		return
	}

	snapshot, err := s.app.MarketService.FetchFxRate(r.Context(), parts[0], parts[1])
	if err != nil {
		WriteError(w, errStatus(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, snapshot)
}

// handleMarketRates handles GET /api/market/rates.
func (s *Server) handleMarketRates(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	rates := s.app.MarketService.RateTable()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rates": rates,
		"count": len(rates),
	})
}

// handleMarketRefresh handles POST /api/market/refresh {"symbols": [...]}.
func (s *Server) handleMarketRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Symbols []string `json:"symbols"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Symbols) == 0 {
		WriteError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	err := s.app.MarketService.RefreshQuotes(r.Context(), req.Symbols)

	refreshed := make(map[string]*models.Quote, len(req.Symbols))
	for _, symbol := range req.Symbols {
		if q, ok := s.app.MarketService.Quote(symbol); ok {
			refreshed[q.Symbol] = q
		}
	}

	resp := map[string]interface{}{
		"requested": len(req.Symbols),
		"refreshed": len(refreshed),
		"quotes":    refreshed,
	}
	if err != nil {
		resp["errors"] = err.Error()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// handleCacheClear handles POST /api/cache/clear {"class": "fx_rate"}.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Class string `json:"class"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	class := models.TTLClass(req.Class)
	switch class {
	case models.TTLCurrentPrice, models.TTLFxRate, models.TTLHistoricalBars:
	default:
		WriteError(w, http.StatusBadRequest, "unknown cache class: "+req.Class)
		return
	}

	removed := s.app.RateCache.Clear(r.Context(), class)
	s.logger.Info().
		Str("class", string(class)).
		Int("removed", removed).
		Msg("Cache class cleared")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"class":   class,
		"removed": removed,
	})
}
