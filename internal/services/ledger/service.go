// Package ledger owns all mutations of the lot ledger: portfolios,
// lots, cash state, and watchlists. Every mutating call persists the
// full ledger record before returning, so a crash between calls never
// leaves partial state.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// Service implements LedgerService over a LedgerStore. A single mutex
// serializes mutations; reads load from the store so they see the last
// persisted state.
type Service struct {
	store  interfaces.LedgerStore
	logger *common.Logger
	now    func() time.Time // injectable clock for testing

	mu sync.Mutex
}

// NewService creates a ledger service.
func NewService(store interfaces.LedgerStore, logger *common.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// CreatePortfolio registers a new empty portfolio.
func (s *Service) CreatePortfolio(ctx context.Context, name, baseCurrency string) (*models.Portfolio, error) {
	baseCurrency = strings.ToUpper(strings.TrimSpace(baseCurrency))
	if len(baseCurrency) != 3 {
		return nil, fmt.Errorf("invalid base currency %q", baseCurrency)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("portfolio name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	portfolio := &models.Portfolio{
		ID:           uuid.NewString(),
		Name:         name,
		BaseCurrency: baseCurrency,
		CashBalance:  decimal.Zero,
		Holdings:     make(map[string]*models.Holding),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	record.Portfolios[portfolio.ID] = portfolio

	if err := s.save(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("portfolio", portfolio.ID).
		Str("name", name).
		Str("base_currency", baseCurrency).
		Msg("Portfolio created")

	return portfolio, nil
}

// GetPortfolio returns one portfolio by ID.
func (s *Service) GetPortfolio(ctx context.Context, portfolioID string) (*models.Portfolio, error) {
	record, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	p := record.Portfolio(portfolioID)
	if p == nil {
		return nil, fmt.Errorf("%w: portfolio %s", models.ErrNotFound, portfolioID)
	}
	return p, nil
}

// ListPortfolios returns all portfolios ordered by name.
func (s *Service) ListPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	record, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	portfolios := make([]*models.Portfolio, 0, len(record.Portfolios))
	for _, p := range record.Portfolios {
		portfolios = append(portfolios, p)
	}
	sort.Slice(portfolios, func(i, j int) bool {
		return portfolios[i].Name < portfolios[j].Name
	})
	return portfolios, nil
}

// AddLot appends an executed buy or sell to a holding, creating the
// holding from the supplied metadata when the symbol is new. A sell
// larger than the current position is allowed through with a warning;
// downstream valuation handles negative net quantities.
func (s *Service) AddLot(ctx context.Context, portfolioID, symbol string, holding models.Holding, lot models.Lot) (*models.Lot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if !models.ValidLotSide(lot.Side) {
		return nil, fmt.Errorf("invalid lot side %q", lot.Side)
	}
	if lot.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("lot quantity must be positive, got %s", lot.Quantity)
	}
	if lot.Price.IsNegative() {
		return nil, fmt.Errorf("lot price must not be negative, got %s", lot.Price)
	}
	if lot.Fee.IsNegative() {
		return nil, fmt.Errorf("lot fee must not be negative, got %s", lot.Fee)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	p := record.Portfolio(portfolioID)
	if p == nil {
		return nil, fmt.Errorf("%w: portfolio %s", models.ErrNotFound, portfolioID)
	}

	now := s.now()
	h := p.Holding(symbol)
	if h == nil {
		class := holding.Class
		if class == "" {
			class = models.ClassEquity
		}
		if !models.ValidInstrumentClass(class) {
			return nil, fmt.Errorf("invalid instrument class %q", class)
		}
		currency := strings.ToUpper(strings.TrimSpace(holding.NativeCurrency))
		if len(currency) != 3 {
			return nil, fmt.Errorf("invalid native currency %q for new holding %s", holding.NativeCurrency, symbol)
		}
		h = &models.Holding{
			Symbol:         symbol,
			DisplayName:    holding.DisplayName,
			Class:          class,
			NativeCurrency: currency,
			CreatedAt:      now,
		}
		if h.DisplayName == "" {
			h.DisplayName = symbol
		}
		if p.Holdings == nil {
			p.Holdings = make(map[string]*models.Holding)
		}
		p.Holdings[symbol] = h
	}

	if lot.Side == models.LotSell {
		net := h.NetQuantity()
		if lot.Quantity.GreaterThan(net) {
			s.logger.Warn().
				Str("portfolio", portfolioID).
				Str("symbol", symbol).
				Str("sell_qty", lot.Quantity.String()).
				Str("position", net.String()).
				Msg("Sell exceeds current position, recording anyway")
		}
	}

	lot.ID = uuid.NewString()
	if lot.Timestamp.IsZero() {
		lot.Timestamp = now
	}
	lot.CreatedAt = now
	lot.UpdatedAt = now

	h.Lots = append(h.Lots, lot)
	h.UpdatedAt = now
	p.UpdatedAt = now

	if err := s.save(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("portfolio", portfolioID).
		Str("symbol", symbol).
		Str("side", string(lot.Side)).
		Str("qty", lot.Quantity.String()).
		Str("lot", lot.ID).
		Msg("Lot recorded")

	return &lot, nil
}

// UpdateLot applies a partial patch to an existing lot.
func (s *Service) UpdateLot(ctx context.Context, portfolioID, symbol, lotID string, patch models.LotPatch) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if patch.Side != nil && !models.ValidLotSide(*patch.Side) {
		return fmt.Errorf("invalid lot side %q", *patch.Side)
	}
	if patch.Quantity != nil && patch.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("lot quantity must be positive, got %s", patch.Quantity)
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return fmt.Errorf("lot price must not be negative, got %s", patch.Price)
	}
	if patch.Fee != nil && patch.Fee.IsNegative() {
		return fmt.Errorf("lot fee must not be negative, got %s", patch.Fee)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(ctx)
	if err != nil {
		return err
	}
	h, err := findHolding(record, portfolioID, symbol)
	if err != nil {
		return err
	}
	idx := h.FindLot(lotID)
	if idx < 0 {
		return fmt.Errorf("%w: lot %s in %s", models.ErrNotFound, lotID, symbol)
	}

	now := s.now()
	patch.Apply(&h.Lots[idx], now)
	h.UpdatedAt = now
	record.Portfolio(portfolioID).UpdatedAt = now

	return s.save(ctx, record)
}

// RemoveLot deletes a lot. The holding survives at zero quantity when
// its last lot goes, keeping history visible to consumers.
func (s *Service) RemoveLot(ctx context.Context, portfolioID, symbol, lotID string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(ctx)
	if err != nil {
		return err
	}
	h, err := findHolding(record, portfolioID, symbol)
	if err != nil {
		return err
	}
	idx := h.FindLot(lotID)
	if idx < 0 {
		return fmt.Errorf("%w: lot %s in %s", models.ErrNotFound, lotID, symbol)
	}

	now := s.now()
	h.Lots = append(h.Lots[:idx], h.Lots[idx+1:]...)
	h.UpdatedAt = now
	record.Portfolio(portfolioID).UpdatedAt = now

	s.logger.Info().
		Str("portfolio", portfolioID).
		Str("symbol", symbol).
		Str("lot", lotID).
		Msg("Lot removed")

	return s.save(ctx, record)
}

// RecordCashEvent appends a signed cash movement and moves the cash
// balance by the same amount in one persisted step.
func (s *Service) RecordCashEvent(ctx context.Context, portfolioID string, when time.Time, amount decimal.Decimal, note string) error {
	if amount.IsZero() {
		return fmt.Errorf("cash event amount must be non-zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(ctx)
	if err != nil {
		return err
	}
	p := record.Portfolio(portfolioID)
	if p == nil {
		return fmt.Errorf("%w: portfolio %s", models.ErrNotFound, portfolioID)
	}

	now := s.now()
	if when.IsZero() {
		when = now
	}
	event := models.CashEvent{
		ID:        uuid.NewString(),
		Timestamp: when,
		Amount:    amount,
		Note:      note,
		CreatedAt: now,
	}
	p.CashEvents = append(p.CashEvents, event)
	p.CashBalance = p.CashBalance.Add(amount)
	p.UpdatedAt = now

	if err := s.save(ctx, record); err != nil {
		return err
	}

	s.logger.Info().
		Str("portfolio", portfolioID).
		Str("amount", amount.String()).
		Str("balance", p.CashBalance.String()).
		Msg("Cash event recorded")

	return nil
}

// SetCashBalance overrides the cash balance directly without an event.
// Used for reconciliation against an external statement.
func (s *Service) SetCashBalance(ctx context.Context, portfolioID string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(ctx)
	if err != nil {
		return err
	}
	p := record.Portfolio(portfolioID)
	if p == nil {
		return fmt.Errorf("%w: portfolio %s", models.ErrNotFound, portfolioID)
	}

	p.CashBalance = balance
	p.UpdatedAt = s.now()

	return s.save(ctx, record)
}

// Watchlist returns the symbols on a named watchlist. A missing list is
// an empty list, not an error.
func (s *Service) Watchlist(ctx context.Context, name string) ([]string, error) {
	record, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return record.Watchlists[name], nil
}

// SetWatchlist replaces a named watchlist. Symbols are uppercased and
// de-duplicated preserving first occurrence. An empty slice deletes the
// list.
func (s *Service) SetWatchlist(ctx context.Context, name string, symbols []string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("watchlist name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(ctx)
	if err != nil {
		return err
	}
	if record.Watchlists == nil {
		record.Watchlists = make(map[string][]string)
	}

	if len(symbols) == 0 {
		delete(record.Watchlists, name)
		return s.save(ctx, record)
	}

	seen := make(map[string]bool, len(symbols))
	cleaned := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		cleaned = append(cleaned, sym)
	}
	record.Watchlists[name] = cleaned

	return s.save(ctx, record)
}

// load reads the ledger record. A corrupt record comes back empty with
// an error; mutations refuse to proceed so they cannot persist over a
// record that failed to parse.
func (s *Service) load(ctx context.Context) (*models.LedgerRecord, error) {
	record, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return record, nil
}

func (s *Service) save(ctx context.Context, record *models.LedgerRecord) error {
	record.UpdatedAt = s.now()
	if err := s.store.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to persist ledger: %w", err)
	}
	return nil
}

func findHolding(record *models.LedgerRecord, portfolioID, symbol string) (*models.Holding, error) {
	p := record.Portfolio(portfolioID)
	if p == nil {
		return nil, fmt.Errorf("%w: portfolio %s", models.ErrNotFound, portfolioID)
	}
	h := p.Holding(symbol)
	if h == nil {
		return nil, fmt.Errorf("%w: holding %s", models.ErrNotFound, symbol)
	}
	return h, nil
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Ensure Service implements LedgerService
var _ interfaces.LedgerService = (*Service)(nil)
