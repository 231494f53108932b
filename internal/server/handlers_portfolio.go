package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/models"
)

// handlePortfolios handles GET (list) and POST (create) on /api/portfolios.
func (s *Server) handlePortfolios(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		portfolios, err := s.app.LedgerService.ListPortfolios(r.Context())
		if err != nil {
			WriteError(w, errStatus(err), err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"portfolios": portfolios,
			"count":      len(portfolios),
		})
	case http.MethodPost:
		var req struct {
			Name         string `json:"name"`
			BaseCurrency string `json:"base_currency"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		portfolio, err := s.app.LedgerService.CreatePortfolio(r.Context(), req.Name, req.BaseCurrency)
		if err != nil {
			WriteError(w, errStatus(err), err.Error())
			return
		}
		WriteJSON(w, http.StatusCreated, portfolio)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handlePortfolioGet handles GET /api/portfolios/{id}.
func (s *Server) handlePortfolioGet(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	portfolio, err := s.app.LedgerService.GetPortfolio(r.Context(), id)
	if err != nil {
		WriteError(w, errStatus(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, portfolio)
}

// handlePortfolioValuation handles GET /api/portfolios/{id}/valuation.
// The optional ?currency= query selects the display currency.
func (s *Server) handlePortfolioValuation(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	currency := r.URL.Query().Get("currency")
	valuation, err := s.app.ValuationService.ValuePortfolio(r.Context(), id, currency)
	if err != nil {
		WriteError(w, errStatus(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, valuation)
}

// handleSeries handles GET /api/series?ids=a,b&currency=USD.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	idsParam := r.URL.Query().Get("ids")
	if idsParam == "" {
		WriteError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}
	var ids []string
	for _, id := range strings.Split(idsParam, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	currency := r.URL.Query().Get("currency")
	points, err := s.app.ValuationService.Series(r.Context(), ids, currency)
	if err != nil {
		WriteError(w, errStatus(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"series": points,
		"count":  len(points),
	})
}

// lotRequest is the POST/PATCH body for lot mutations. Instrument
// metadata is only consulted when the lot creates a new holding.
type lotRequest struct {
	Symbol         string          `json:"symbol"`
	DisplayName    string          `json:"display_name,omitempty"`
	Class          string          `json:"instrument_class,omitempty"`
	NativeCurrency string          `json:"native_currency,omitempty"`
	Side           string          `json:"side"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	Fee            decimal.Decimal `json:"fee,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// handleLotAdd handles POST /api/portfolios/{id}/lots.
func (s *Server) handleLotAdd(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req lotRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	holding := models.Holding{
		DisplayName:    req.DisplayName,
		Class:          models.InstrumentClass(req.Class),
		NativeCurrency: req.NativeCurrency,
	}
	lot := models.Lot{
		Side:      models.LotSide(req.Side),
		Quantity:  req.Quantity,
		Price:     req.Price,
		Fee:       req.Fee,
		Timestamp: req.Timestamp,
	}

	created, err := s.app.LedgerService.AddLot(r.Context(), id, req.Symbol, holding, lot)
	if err != nil {
		WriteError(w, errStatus(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// lotPatchRequest carries optional lot field updates; absent fields are
// left unchanged.
type lotPatchRequest struct {
	Side      *string          `json:"side,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Fee       *decimal.Decimal `json:"fee,omitempty"`
	Timestamp *time.Time       `json:"timestamp,omitempty"`
}

// handleLotItem handles PATCH and DELETE on
// /api/portfolios/{id}/lots/{symbol}/{lotID}.
func (s *Server) handleLotItem(w http.ResponseWriter, r *http.Request, id, symbol, lotID string) {
	switch r.Method {
	case http.MethodPatch:
		var req lotPatchRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		patch := models.LotPatch{
			Quantity:  req.Quantity,
			Price:     req.Price,
			Fee:       req.Fee,
			Timestamp: req.Timestamp,
		}
		if req.Side != nil {
			side := models.LotSide(*req.Side)
			patch.Side = &side
		}
		if err := s.app.LedgerService.UpdateLot(r.Context(), id, symbol, lotID, patch); err != nil {
			WriteError(w, errStatus(err), err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case http.MethodDelete:
		if err := s.app.LedgerService.RemoveLot(r.Context(), id, symbol, lotID); err != nil {
			WriteError(w, errStatus(err), err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	default:
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCash handles POST (record event) and PUT (set balance) on
// /api/portfolios/{id}/cash.
func (s *Server) handleCash(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Amount    decimal.Decimal `json:"amount"`
			Timestamp time.Time       `json:"timestamp"`
			Note      string          `json:"note,omitempty"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if req.Timestamp.IsZero() {
			req.Timestamp = time.Now()
		}
		if err := s.app.LedgerService.RecordCashEvent(r.Context(), id, req.Timestamp, req.Amount, req.Note); err != nil {
			WriteError(w, errStatus(err), err.Error())
			return
		}
		WriteJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
	case http.MethodPut:
		var req struct {
			Balance decimal.Decimal `json:"balance"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if err := s.app.LedgerService.SetCashBalance(r.Context(), id, req.Balance); err != nil {
			WriteError(w, errStatus(err), err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "set"})
	default:
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleWatchlist handles GET and PUT on /api/watchlists/{name}.
func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request, name string) {
	switch r.Method {
	case http.MethodGet:
		symbols, err := s.app.LedgerService.Watchlist(r.Context(), name)
		if err != nil {
			WriteError(w, errStatus(err), err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"name":    name,
			"symbols": symbols,
			"count":   len(symbols),
		})
	case http.MethodPut:
		var req struct {
			Symbols []string `json:"symbols"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if err := s.app.LedgerService.SetWatchlist(r.Context(), name, req.Symbols); err != nil {
			WriteError(w, errStatus(err), err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"})
	default:
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
