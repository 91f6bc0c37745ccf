// Package services – SessionService
//
// SessionService is the order session engine of a table: it opens and
// closes table sessions, keeps the shared cart that every diner at the table
// writes to, enforces the rodízio round limit when items are added, and
// turns the cart into a sent order.
//
// Cart lines are keyed by (item, client, observation, pricing kind), so
// concurrent additions from different devices merge instead of colliding.
// The round limit is checked against the unsent cart only. In best-effort
// mode the check is a plain read-then-write and two racing clients may
// overshoot the limit slightly; strict mode serializes cart writers per
// table.
//
// Sending writes the order and clears exactly the lines it read in one
// transaction, then runs the stock deduction separately. A failed order
// write leaves the cart intact; a failed deduction leaves the order pending
// for DeductionService.RetryPending.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/config"
	"github.com/Fredcx/ezmenu/internal/domain"
	"github.com/Fredcx/ezmenu/internal/observability"
	"github.com/Fredcx/ezmenu/internal/repo"
)

// LineKey identifies a cart line for the calling client.
type LineKey struct {
	ItemID      string
	ClientID    string
	Observation string
	Alacarte    bool // forced à-la-carte variant of a rodízio item
}

// AddInput is one addToCart request.
type AddInput struct {
	LineKey
}

// AddResult reports whether an addToCart call changed the cart.
type AddResult struct {
	Added         bool             `json:"added"`
	Line          *domain.CartLine `json:"line,omitempty"`
	RodizioInCart int              `json:"rodizio_in_cart"`
	RoundLimit    int              `json:"round_limit"`
}

// DirectItem is a line charged straight to the sent orders, bypassing the cart.
type DirectItem struct {
	ItemID      string `json:"item_id"`
	ClientID    string `json:"client_id"`
	Quantity    int    `json:"quantity"`
	Observation string `json:"observation"`
	Alacarte    bool   `json:"alacarte"`
}

// Snapshot is the current view of a table.
type Snapshot struct {
	Session       domain.TableSession   `json:"session"`
	Cart          []domain.CartLine     `json:"cart"`
	Sent          []domain.SentLineItem `json:"sent"`
	RodizioInCart int                   `json:"rodizio_in_cart"`
	RodizioSent   int                   `json:"rodizio_sent"`
	Remaining     int                   `json:"remaining"`
}

// SendResult is the outcome of a send.
type SendResult struct {
	Order    *domain.Order    `json:"order,omitempty"`
	Replayed bool             `json:"replayed"`
	Sent     bool             `json:"sent"`
	Deducted *DeductionResult `json:"deduction,omitempty"`
}

// SessionService coordinates table sessions, carts and sends.
type SessionService struct {
	DB             *gorm.DB
	Deductions     *DeductionService
	Notifier       Notifier
	RoundLimit     int
	CapMode        string // config.CartCapBestEffort | config.CartCapStrict
	IdempotencyTTL time.Duration
	Now            func() time.Time

	locks *keyedLocker
}

// NewSessionService constructs a SessionService with the given defaults.
func NewSessionService(db *gorm.DB, d *DeductionService, n Notifier, roundLimit int, capMode string) *SessionService {
	if roundLimit < 1 {
		roundLimit = 10
	}
	if capMode == "" {
		capMode = config.CartCapBestEffort
	}
	return &SessionService{
		DB:             db,
		Deductions:     d,
		Notifier:       n,
		RoundLimit:     roundLimit,
		CapMode:        capMode,
		IdempotencyTTL: 24 * time.Hour,
		locks:          newKeyedLocker(),
	}
}

func (s *SessionService) tracer() trace.Tracer { return otel.Tracer("services/SessionService") }

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SessionService) lockTable(tableID string) func() {
	if s.locks == nil {
		s.locks = newKeyedLocker()
	}
	return s.locks.Lock("table:" + tableID)
}

func (s *SessionService) active(ctx context.Context, db *gorm.DB, tableID string) (*domain.TableSession, error) {
	sess, err := repo.GetActiveSession(ctx, db, tableID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// Start opens a session for tableID with the given number of diners. When
// the table already has an active session the diners join it and created
// is false. roundLimit <= 0 uses the configured default. A new session
// continues the round numbering of the table's previous session.
func (s *SessionService) Start(ctx context.Context, tableID string, clients, roundLimit int) (sess *domain.TableSession, created bool, err error) {
	ctx, span := s.tracer().Start(ctx, "Start", trace.WithAttributes(
		attribute.String("table.id", tableID),
		attribute.Int("clients", clients),
	))
	defer span.End()

	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return nil, false, validationf("table id is required")
	}
	if clients < 1 {
		return nil, false, validationf("clients must be >= 1")
	}
	if roundLimit <= 0 {
		roundLimit = s.RoundLimit
	}

	unlock := s.lockTable(tableID)
	defer unlock()

	cur, err := s.active(ctx, s.DB, tableID)
	switch {
	case err == nil:
		cur.Clients += clients
		if err := repo.UpdateSessionClients(ctx, s.DB, cur.ID, cur.Clients); err != nil {
			return nil, false, err
		}
		publish(s.Notifier, TableTopic(tableID), EventSessionStarted, cur)
		return cur, false, nil
	case !errors.Is(err, ErrSessionNotFound):
		return nil, false, err
	}

	round := 1
	last, err := repo.GetLastSession(ctx, s.DB, tableID)
	if err == nil {
		round = last.RoundNumber + 1
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, err
	}

	sess = &domain.TableSession{
		ID:            uuid.NewString(),
		TableID:       tableID,
		Status:        domain.SessionActive,
		Clients:       clients,
		TurnStartTime: s.now(),
		RoundLimit:    roundLimit,
		RoundNumber:   round,
	}
	if err := repo.CreateSession(ctx, s.DB, sess); err != nil {
		return nil, false, err
	}
	publish(s.Notifier, TableTopic(tableID), EventSessionStarted, sess)
	return sess, true, nil
}

// Snapshot returns the active session with its cart, the items already
// sent in this session, and the rodízio headroom left in the cart.
func (s *SessionService) Snapshot(ctx context.Context, tableID string) (*Snapshot, error) {
	ctx, span := s.tracer().Start(ctx, "Snapshot", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	sess, err := s.active(ctx, s.DB, tableID)
	if err != nil {
		return nil, err
	}
	cart, err := repo.ListCartLines(ctx, s.DB, sess.ID)
	if err != nil {
		return nil, err
	}
	sent, err := repo.ListSessionItems(ctx, s.DB, sess.ID)
	if err != nil {
		return nil, err
	}
	inCart := 0
	for _, l := range cart {
		if l.IsRodizioUnit {
			inCart += l.Quantity
		}
	}
	sentUnits, err := repo.SumSentRodizioUnits(ctx, s.DB, sess.ID, sess.TurnStartTime)
	if err != nil {
		return nil, err
	}
	remaining := sess.RoundLimit - inCart
	if remaining < 0 {
		remaining = 0
	}
	return &Snapshot{
		Session:       *sess,
		Cart:          cart,
		Sent:          sent,
		RodizioInCart: inCart,
		RodizioSent:   sentUnits,
		Remaining:     remaining,
	}, nil
}

// AddToCart adds one unit of an item for a client. Rodízio units are
// ignored (Added=false) once the cart already holds RoundLimit of them;
// forced à-la-carte units and other categories are never capped. A line
// with the same key is incremented, otherwise a new line of quantity 1 is
// appended.
func (s *SessionService) AddToCart(ctx context.Context, tableID string, in AddInput) (*AddResult, error) {
	ctx, span := s.tracer().Start(ctx, "AddToCart", trace.WithAttributes(
		attribute.String("table.id", tableID),
		attribute.String("menu_item.id", in.ItemID),
		attribute.Bool("alacarte", in.Alacarte),
	))
	defer span.End()

	if s.CapMode == config.CartCapStrict {
		unlock := s.lockTable(tableID)
		defer unlock()
	}

	sess, err := s.active(ctx, s.DB, tableID)
	if err != nil {
		return nil, err
	}
	item, err := s.menuItem(ctx, in.ItemID)
	if err != nil {
		return nil, err
	}
	pricing := domain.ResolvePricing(*item, in.Alacarte)

	inCart, err := repo.SumCartRodizioUnits(ctx, s.DB, sess.ID)
	if err != nil {
		return nil, err
	}
	res := &AddResult{RodizioInCart: inCart, RoundLimit: sess.RoundLimit}
	if pricing.IsRodizio() && inCart >= sess.RoundLimit {
		observability.RodizioCapRejections.Inc()
		return res, nil
	}

	key := repo.CartKey{
		SessionID:   sess.ID,
		ItemID:      item.ID,
		ClientID:    normalizeClient(in.ClientID),
		Observation: strings.TrimSpace(in.Observation),
		PricingKind: pricing.Kind,
	}
	line, err := s.mergeLine(ctx, key, pricing)
	if err != nil {
		return nil, err
	}
	res.Added = true
	res.Line = line
	if pricing.IsRodizio() {
		res.RodizioInCart++
	}
	publish(s.Notifier, TableTopic(tableID), EventCartUpdated, line)
	return res, nil
}

// mergeLine increments the line identified by key, creating it when absent.
// A concurrent creation of the same key falls back to incrementing.
func (s *SessionService) mergeLine(ctx context.Context, key repo.CartKey, pricing domain.Pricing) (*domain.CartLine, error) {
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := repo.FindCartLine(ctx, s.DB, key)
		switch {
		case err == nil:
			if err := repo.IncrementCartLine(ctx, s.DB, existing.ID, 1); err != nil {
				return nil, err
			}
			existing.Quantity++
			return existing, nil
		case !errors.Is(err, repo.ErrNotFound):
			return nil, err
		}

		line := &domain.CartLine{
			ID:            uuid.NewString(),
			SessionID:     key.SessionID,
			ItemID:        key.ItemID,
			ClientID:      key.ClientID,
			Observation:   key.Observation,
			PricingKind:   pricing.Kind,
			Quantity:      1,
			IsRodizioUnit: pricing.IsRodizio(),
			UnitPrice:     pricing.Price,
		}
		err = repo.CreateCartLine(ctx, s.DB, line)
		if err == nil {
			return line, nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return nil, err
		}
	}
	return nil, &PersistenceError{Op: "add to cart", Err: repo.ErrDuplicate}
}

// UpdateQuantity replaces the quantity of a line; qty <= 0 removes it. The
// round limit is not re-checked here.
func (s *SessionService) UpdateQuantity(ctx context.Context, tableID string, key LineKey, qty int) (*domain.CartLine, error) {
	ctx, span := s.tracer().Start(ctx, "UpdateQuantity", trace.WithAttributes(
		attribute.String("table.id", tableID),
		attribute.String("menu_item.id", key.ItemID),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	line, err := s.findLine(ctx, tableID, key)
	if err != nil {
		return nil, err
	}
	if qty <= 0 {
		if err := repo.DeleteCartLine(ctx, s.DB, line.SessionID, line.ID); err != nil {
			return nil, err
		}
		publish(s.Notifier, TableTopic(tableID), EventCartUpdated, nil)
		return nil, nil
	}
	if err := repo.SetCartLineQuantity(ctx, s.DB, line.ID, qty); err != nil {
		return nil, err
	}
	line.Quantity = qty
	publish(s.Notifier, TableTopic(tableID), EventCartUpdated, line)
	return line, nil
}

// RemoveFromCart deletes one line of the calling client.
func (s *SessionService) RemoveFromCart(ctx context.Context, tableID string, key LineKey) error {
	ctx, span := s.tracer().Start(ctx, "RemoveFromCart", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	line, err := s.findLine(ctx, tableID, key)
	if err != nil {
		return err
	}
	if err := repo.DeleteCartLine(ctx, s.DB, line.SessionID, line.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrLineNotFound
		}
		return err
	}
	publish(s.Notifier, TableTopic(tableID), EventCartUpdated, nil)
	return nil
}

// ClearCart empties the table's cart.
func (s *SessionService) ClearCart(ctx context.Context, tableID string) error {
	ctx, span := s.tracer().Start(ctx, "ClearCart", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	sess, err := s.active(ctx, s.DB, tableID)
	if err != nil {
		return err
	}
	if err := repo.ClearCart(ctx, s.DB, sess.ID); err != nil {
		return err
	}
	publish(s.Notifier, TableTopic(tableID), EventCartUpdated, nil)
	return nil
}

func (s *SessionService) findLine(ctx context.Context, tableID string, key LineKey) (*domain.CartLine, error) {
	sess, err := s.active(ctx, s.DB, tableID)
	if err != nil {
		return nil, err
	}
	kind := domain.PricingAlacarte
	if item, err := s.menuItem(ctx, key.ItemID); err == nil {
		kind = domain.ResolvePricing(*item, key.Alacarte).Kind
	} else if !errors.Is(err, ErrMenuItemNotFound) {
		return nil, err
	}
	line, err := repo.FindCartLine(ctx, s.DB, repo.CartKey{
		SessionID:   sess.ID,
		ItemID:      key.ItemID,
		ClientID:    normalizeClient(key.ClientID),
		Observation: strings.TrimSpace(key.Observation),
		PricingKind: kind,
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrLineNotFound
	}
	return line, err
}

// Send submits the whole cart as one order. An empty cart is a no-op
// (Sent=false). When idemKey is set, a repeat of the same key from the same
// client and table returns the original order with Replayed=true.
func (s *SessionService) Send(ctx context.Context, tableID, clientID, idemKey string) (*SendResult, error) {
	ctx, span := s.tracer().Start(ctx, "Send", trace.WithAttributes(
		attribute.String("table.id", tableID),
		attribute.Bool("idempotent", idemKey != ""),
	))
	defer span.End()

	clientID = normalizeClient(clientID)
	if res, ok, err := s.replay(ctx, tableID, clientID, idemKey); err != nil || ok {
		return res, err
	}

	unlock := s.lockTable(tableID)
	defer unlock()

	// Re-check under the lock: a concurrent request with the same key may
	// have completed while we waited.
	if res, ok, err := s.replay(ctx, tableID, clientID, idemKey); err != nil || ok {
		return res, err
	}

	sess, err := s.active(ctx, s.DB, tableID)
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines, err := repo.ListCartLines(ctx, tx, sess.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}
		order = s.newOrder(sess, domain.SourceCart)
		ids := make([]string, len(lines))
		for i, l := range lines {
			ids[i] = l.ID
			order.Items = append(order.Items, s.sentItem(order, l.ItemID, l.ClientID, l.Observation, l.Quantity, l.IsRodizioUnit, l.PricingKind, l.UnitPrice))
		}
		if err := repo.CreateOrder(ctx, tx, order); err != nil {
			return err
		}
		if _, err := repo.DeleteCartLines(ctx, tx, ids); err != nil {
			return err
		}
		if idemKey != "" {
			if _, err := repo.CreateIdempotency(ctx, tx, clientID, tableID, idemKey, order.ID, http.StatusCreated, s.IdempotencyTTL); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrEmptyCart) {
		return &SendResult{Sent: false}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, &PersistenceError{Op: "send", Err: err}
	}

	observability.OrdersSent.WithLabelValues(string(domain.SourceCart)).Inc()
	res := &SendResult{Order: order, Sent: true}
	res.Deducted = s.deduct(ctx, order)
	s.publishOrder(tableID, order)
	return res, nil
}

// AddDirect writes items straight to the sent orders without touching the
// cart or the round limit (e.g. the buffet cover charged at round start),
// then deducts their stock.
func (s *SessionService) AddDirect(ctx context.Context, tableID string, items []DirectItem) (*domain.Order, error) {
	ctx, span := s.tracer().Start(ctx, "AddDirect", trace.WithAttributes(
		attribute.String("table.id", tableID),
		attribute.Int("items", len(items)),
	))
	defer span.End()

	if len(items) == 0 {
		return nil, validationf("at least one item is required")
	}

	unlock := s.lockTable(tableID)
	defer unlock()

	sess, err := s.active(ctx, s.DB, tableID)
	if err != nil {
		return nil, err
	}

	order := s.newOrder(sess, domain.SourceDirect)
	for i, in := range items {
		if in.Quantity < 1 {
			return nil, validationf("item %d: quantity must be >= 1", i)
		}
		mi, err := s.menuItem(ctx, in.ItemID)
		if err != nil {
			return nil, err
		}
		p := domain.ResolvePricing(*mi, in.Alacarte)
		order.Items = append(order.Items, s.sentItem(order, mi.ID, normalizeClient(in.ClientID), strings.TrimSpace(in.Observation), in.Quantity, p.IsRodizio(), p.Kind, p.Price))
	}
	if err := repo.CreateOrder(ctx, s.DB, order); err != nil {
		span.RecordError(err)
		return nil, &PersistenceError{Op: "direct order", Err: err}
	}

	observability.OrdersSent.WithLabelValues(string(domain.SourceDirect)).Inc()
	s.deduct(ctx, order)
	s.publishOrder(tableID, order)
	return order, nil
}

// Close releases the table: open sent items are archived, the cart is
// cleared and the session is marked closed.
func (s *SessionService) Close(ctx context.Context, tableID string) (*domain.TableSession, error) {
	ctx, span := s.tracer().Start(ctx, "Close", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	unlock := s.lockTable(tableID)
	defer unlock()

	sess, err := s.active(ctx, s.DB, tableID)
	if err != nil {
		return nil, err
	}
	at := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.ArchiveSessionItems(ctx, tx, sess.ID, at); err != nil {
			return err
		}
		if err := repo.ClearCart(ctx, tx, sess.ID); err != nil {
			return err
		}
		return repo.CloseSession(ctx, tx, sess.ID, at)
	})
	if err != nil {
		return nil, &PersistenceError{Op: "close session", Err: err}
	}
	sess.Status = domain.SessionClosed
	sess.ClosedAt = &at
	publish(s.Notifier, TableTopic(tableID), EventSessionClosed, sess)
	return sess, nil
}

// ListOrders returns the orders of the table's active session.
func (s *SessionService) ListOrders(ctx context.Context, tableID string) ([]domain.Order, error) {
	ctx, span := s.tracer().Start(ctx, "ListOrders", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	sess, err := s.active(ctx, s.DB, tableID)
	if err != nil {
		return nil, err
	}
	return repo.ListOrdersBySession(ctx, s.DB, sess.ID)
}

func (s *SessionService) replay(ctx context.Context, tableID, clientID, idemKey string) (*SendResult, bool, error) {
	if idemKey == "" {
		return nil, false, nil
	}
	rec, err := repo.GetIdempotency(ctx, s.DB, clientID, tableID, idemKey, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	order, err := repo.GetOrder(ctx, s.DB, rec.OrderID)
	if err != nil {
		return nil, false, err
	}
	return &SendResult{Order: order, Sent: true, Replayed: true}, true, nil
}

// deduct runs the stock deduction for a freshly written order. Failures are
// logged; the order stays pending and is retried later.
func (s *SessionService) deduct(ctx context.Context, order *domain.Order) *DeductionResult {
	if s.Deductions == nil {
		return nil
	}
	res, err := s.Deductions.Apply(ctx, order.ID)
	if err != nil {
		log.Error().Err(err).
			Str("order_id", order.ID).
			Str("table_id", order.TableID).
			Msg("stock deduction failed; order left pending for retry")
		return nil
	}
	order.DeductionStatus = domain.DeductionApplied
	return res
}

// publishOrder announces a sent order. Subscribers encode the payload on
// their own goroutines, so they get a copy the caller can keep mutating.
func (s *SessionService) publishOrder(tableID string, order *domain.Order) {
	snap := *order
	snap.Items = append([]domain.SentLineItem(nil), order.Items...)
	publish(s.Notifier, TableTopic(tableID), EventOrderSent, &snap)
}

func (s *SessionService) newOrder(sess *domain.TableSession, src domain.OrderSource) *domain.Order {
	now := s.now()
	return &domain.Order{
		ID:              uuid.NewString(),
		SessionID:       sess.ID,
		TableID:         sess.TableID,
		Source:          src,
		SentAt:          now,
		DeductionStatus: domain.DeductionPending,
		CreatedAt:       now,
	}
}

func (s *SessionService) sentItem(o *domain.Order, itemID, clientID, obs string, qty int, rodizio bool, kind domain.PricingKind, unit decimal.Decimal) domain.SentLineItem {
	return domain.SentLineItem{
		ID:            uuid.NewString(),
		OrderID:       o.ID,
		SessionID:     o.SessionID,
		TableID:       o.TableID,
		ItemID:        itemID,
		ClientID:      clientID,
		Observation:   obs,
		Quantity:      qty,
		IsRodizioUnit: rodizio,
		PricingKind:   kind,
		UnitPrice:     unit,
		TotalPrice:    unit.Mul(decimal.NewFromInt(int64(qty))),
		Status:        domain.ItemSent,
		SentAt:        o.SentAt,
		UpdatedAt:     o.SentAt,
	}
}

func (s *SessionService) menuItem(ctx context.Context, id string) (*domain.MenuItem, error) {
	item, err := repo.GetMenuItem(ctx, s.DB, strings.TrimSpace(id))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMenuItemNotFound
	}
	return item, err
}

// AnonymousClient is used when a request carries no client identity.
const AnonymousClient = "anonymous"

func normalizeClient(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return AnonymousClient
	}
	return id
}
