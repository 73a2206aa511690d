package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/coupon"
	"github.com/fjod/go_cart/seafood-cart/internal/delivery"
	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/fjod/go_cart/seafood-cart/internal/inventory"
	"github.com/fjod/go_cart/seafood-cart/internal/persistence"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	MaxQuantityPerOperation = 10
	LowStockThreshold       = 5

	DefaultCartTTL     = 24 * time.Hour
	DefaultErrorTTL    = 3 * time.Second
	defaultSaveTimeout = 2 * time.Second
)

// TaxRate is applied to the subtotal.
var TaxRate = decimal.RequireFromString("0.05")

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidCoupon     = errors.New("invalid coupon code")
	ErrCouponMinimum     = errors.New("order total below coupon minimum")
	ErrCouponExpired     = errors.New("coupon has expired")
	ErrItemNotFound      = errors.New("item not found in cart")
	ErrInvalidProduct    = errors.New("product needs a name and a non-negative price")
)

// Persister loads and saves the cart snapshot.
type Persister interface {
	Load(ctx context.Context) (persistence.Snapshot, error)
	Save(ctx context.Context, snap persistence.Snapshot) error
}

// Config wires the store's collaborators. Zero values fall back to defaults.
type Config struct {
	Stock     inventory.StockChecker
	Coupons   coupon.Catalog
	Policy    delivery.Policy
	Persister Persister
	Logger    *zap.Logger
	Now       func() time.Time

	CartTTL     time.Duration
	ErrorTTL    time.Duration
	SaveTimeout time.Duration
}

// BulkItem is one entry of AddBulkToCart.
type BulkItem struct {
	Product  domain.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// State is a consistent copy of the cart taken under the store lock.
type State struct {
	Items             []domain.LineItem
	Saved             []domain.SavedItem
	Coupon            *domain.Coupon
	Location          *domain.UserLocation
	Slot              *domain.DeliverySlot
	ExpiresAt         *time.Time
	Summary           domain.CartSummary
	DeliveryAvailable bool
}

// Store owns one shopper's cart, saved list, coupon and expiry.
type Store struct {
	mu sync.Mutex

	stock     inventory.StockChecker
	coupons   coupon.Catalog
	policy    delivery.Policy
	persister Persister
	logger    *zap.Logger
	now       func() time.Time

	cartTTL     time.Duration
	saveTimeout time.Duration

	items     []domain.LineItem
	saved     []domain.SavedItem
	coupon    *domain.Coupon
	expiresAt *time.Time
	location  *domain.UserLocation
	slot      *domain.DeliverySlot
	prefs     domain.Preferences
	lastErr   transientError
}

func NewStore(cfg Config) *Store {
	s := &Store{
		stock:       cfg.Stock,
		coupons:     cfg.Coupons,
		policy:      cfg.Policy,
		persister:   cfg.Persister,
		logger:      cfg.Logger,
		now:         cfg.Now,
		cartTTL:     cfg.CartTTL,
		saveTimeout: cfg.SaveTimeout,
		lastErr:     transientError{ttl: cfg.ErrorTTL},
	}
	if s.stock == nil {
		s.stock = inventory.UnlimitedChecker{}
	}
	if s.coupons == nil {
		s.coupons = coupon.DefaultCatalog()
	}
	if s.policy.MaxRadiusKm == 0 {
		s.policy = delivery.DefaultPolicy()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.cartTTL <= 0 {
		s.cartTTL = DefaultCartTTL
	}
	if s.saveTimeout <= 0 {
		s.saveTimeout = defaultSaveTimeout
	}
	if s.lastErr.ttl <= 0 {
		s.lastErr.ttl = DefaultErrorTTL
	}
	return s
}

// Load replaces the in-memory state with the persisted snapshot and clears the
// cart when its expiry has already passed.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = snap.Items
	s.saved = snap.Saved
	s.coupon = snap.Coupon
	s.expiresAt = snap.ExpiresAt
	s.location = snap.Location
	s.prefs = snap.Preferences

	if !s.expireLocked() {
		s.refreshDeliveryLocked()
	}
	return nil
}

// AddToCart adds quantity units of p, merging with an existing line of the same
// name and type. The quantity is clamped to 1..MaxQuantityPerOperation.
func (s *Store) AddToCart(ctx context.Context, p domain.Product, quantity int) error {
	if strings.TrimSpace(p.Name) == "" || p.Price.IsNegative() {
		return ErrInvalidProduct
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()

	if err := s.addLocked(ctx, p, clampQuantity(quantity)); err != nil {
		return err
	}
	s.changedLocked()
	return nil
}

func (s *Store) addLocked(ctx context.Context, p domain.Product, quantity int) error {
	now := s.now()
	idx := s.findByProductLocked(p)

	want := quantity
	if idx >= 0 {
		want += s.items[idx].Quantity
	}
	if err := s.checkStockLocked(ctx, domain.StockKey(p.Name, p.Type), p.Name, want); err != nil {
		return err
	}

	if idx >= 0 {
		s.items[idx].Quantity = want
	} else {
		s.items = append(s.items, domain.NewLineItem(p, quantity, now))
	}

	expires := now.Add(s.cartTTL)
	s.expiresAt = &expires
	return nil
}

// RemoveFromCart deletes the line item; removing an absent item is a no-op.
func (s *Store) RemoveFromCart(ctx context.Context, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()

	idx := s.findLocked(itemID)
	if idx < 0 {
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.changedLocked()
}

// UpdateQuantity sets an item's quantity. Zero or less removes the item.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		s.RemoveFromCart(ctx, itemID)
		return nil
	}
	if quantity > MaxQuantityPerOperation {
		quantity = MaxQuantityPerOperation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()

	idx := s.findLocked(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	item := s.items[idx]
	if err := s.checkStockLocked(ctx, item.StockKey(), item.Name, quantity); err != nil {
		return err
	}

	s.items[idx].Quantity = quantity
	s.changedLocked()
	return nil
}

// SaveForLater moves a line item to the saved list, merging by id.
func (s *Store) SaveForLater(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()

	idx := s.findLocked(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	item := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)

	if j := s.findSavedLocked(itemID); j >= 0 {
		s.saved[j].Quantity += item.Quantity
	} else {
		s.saved = append(s.saved, item.Saved())
	}

	s.changedLocked()
	return nil
}

// MoveToCart moves a saved item back into the cart, merging by id. The move is
// refused when the resulting quantity exceeds available stock.
func (s *Store) MoveToCart(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()

	j := s.findSavedLocked(itemID)
	if j < 0 {
		return ErrItemNotFound
	}
	item := s.saved[j].LineItem()

	idx := s.findLocked(itemID)
	want := item.Quantity
	if idx >= 0 {
		want += s.items[idx].Quantity
	}
	if err := s.checkStockLocked(ctx, item.StockKey(), item.Name, want); err != nil {
		return err
	}

	s.saved = append(s.saved[:j], s.saved[j+1:]...)
	if idx >= 0 {
		s.items[idx].Quantity = want
	} else {
		s.items = append(s.items, item)
	}

	expires := s.now().Add(s.cartTTL)
	s.expiresAt = &expires
	s.changedLocked()
	return nil
}

// RemoveFromSaved deletes a saved item; removing an absent item is a no-op.
func (s *Store) RemoveFromSaved(ctx context.Context, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := s.findSavedLocked(itemID)
	if j < 0 {
		return
	}
	s.saved = append(s.saved[:j], s.saved[j+1:]...)
	s.changedLocked()
}

// ApplyCoupon looks the code up in the catalog and, on success, replaces any
// previously applied coupon.
func (s *Store) ApplyCoupon(ctx context.Context, code string) (domain.Coupon, error) {
	cp, err := s.coupons.Lookup(ctx, code)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()

	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			s.setErrorLocked("Invalid coupon code")
			return domain.Coupon{}, ErrInvalidCoupon
		}
		s.setErrorLocked("Could not validate coupon, please try again")
		return domain.Coupon{}, fmt.Errorf("lookup coupon: %w", err)
	}
	if cp.IsExpired(s.now()) {
		s.setErrorLocked(fmt.Sprintf("Coupon %s has expired", cp.Code))
		return domain.Coupon{}, ErrCouponExpired
	}
	if !cp.Eligible(Total(s.items)) {
		s.setErrorLocked(fmt.Sprintf("Coupon %s needs a minimum order of %s", cp.Code, cp.MinPurchase.StringFixed(2)))
		return domain.Coupon{}, ErrCouponMinimum
	}

	s.coupon = &cp
	s.changedLocked()
	return cp, nil
}

// RemoveCoupon clears the applied coupon and recomputes the delivery fee.
func (s *Store) RemoveCoupon(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.coupon == nil {
		return
	}
	s.coupon = nil
	s.changedLocked()
}

// ClearCart empties the cart and its expiry. Saved items are kept.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
	s.changedLocked()
}

// RemoveOrdered takes the ordered quantities out of the cart after a successful
// checkout. Lines added while the order was in flight are kept, and a line whose
// quantity grew keeps the difference. The coupon is dropped only if it is still
// the one the order used.
func (s *Store) RemoveOrdered(ctx context.Context, ordered []domain.LineItem, used *domain.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range ordered {
		idx := s.findLocked(o.ID)
		if idx < 0 {
			continue
		}
		if s.items[idx].Quantity > o.Quantity {
			s.items[idx].Quantity -= o.Quantity
			continue
		}
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
	if len(s.items) == 0 {
		s.clearLocked()
	}
	if used != nil && s.coupon != nil && s.coupon.Code == used.Code {
		s.coupon = nil
	}
	s.changedLocked()
}

func (s *Store) UpdateNote(ctx context.Context, itemID, note string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(itemID)
	if idx < 0 {
		return
	}
	s.items[idx].Note = note
	s.changedLocked()
}

// ToggleGiftWrap sets the gift-wrap flag; the message is dropped when the flag is off.
func (s *Store) ToggleGiftWrap(ctx context.Context, itemID string, wrap bool, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(itemID)
	if idx < 0 {
		return
	}
	s.items[idx].GiftWrap = wrap
	if wrap {
		s.items[idx].GiftMessage = message
	} else {
		s.items[idx].GiftMessage = ""
	}
	s.changedLocked()
}

// AddBulkToCart validates stock for the whole batch before adding anything.
func (s *Store) AddBulkToCart(ctx context.Context, batch []BulkItem) error {
	for _, b := range batch {
		if strings.TrimSpace(b.Product.Name) == "" || b.Product.Price.IsNegative() {
			return ErrInvalidProduct
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()

	wanted := make(map[string]int)
	var failed []string
	for _, b := range batch {
		key := domain.StockKey(b.Product.Name, b.Product.Type)
		if _, seen := wanted[key]; !seen {
			if idx := s.findByProductLocked(b.Product); idx >= 0 {
				wanted[key] = s.items[idx].Quantity
			}
		}
		wanted[key] += clampQuantity(b.Quantity)

		ok, _, err := s.stockAllowsLocked(ctx, key, wanted[key])
		if err != nil || !ok {
			failed = append(failed, b.Product.Name)
		}
	}
	if len(failed) > 0 {
		s.setErrorLocked("Not enough stock for: " + strings.Join(failed, ", "))
		return fmt.Errorf("%w: %s", ErrInsufficientStock, strings.Join(failed, ", "))
	}

	for _, b := range batch {
		if err := s.addLocked(ctx, b.Product, clampQuantity(b.Quantity)); err != nil {
			s.changedLocked()
			return err
		}
	}
	s.changedLocked()
	return nil
}

// ValidateStock reports whether quantity units of the cart item are available.
func (s *Store) ValidateStock(ctx context.Context, itemID string, quantity int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(itemID)
	if idx < 0 {
		return false
	}
	ok, _, err := s.stockAllowsLocked(ctx, s.items[idx].StockKey(), quantity)
	return err == nil && ok
}

// LowStockItems returns cart items whose reported stock is at or below LowStockThreshold.
func (s *Store) LowStockItems(ctx context.Context) []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var low []domain.LineItem
	for _, item := range s.items {
		n, err := s.stock.Stock(ctx, item.StockKey())
		if err != nil {
			s.logger.Warn("stock lookup failed", zap.String("item_id", item.ID), zap.Error(err))
			continue
		}
		if n != inventory.Unlimited && n <= LowStockThreshold {
			low = append(low, item)
		}
	}
	return low
}

// SetLocation stores the delivery location and derives its fee and availability.
func (s *Store) SetLocation(ctx context.Context, loc domain.UserLocation) domain.UserLocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.location = &loc
	s.changedLocked()
	return *s.location
}

func (s *Store) SelectSlot(slot domain.DeliverySlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot = &slot
}

func (s *Store) SetPreferences(ctx context.Context, prefs domain.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = prefs
	s.persistLocked()
}

func (s *Store) Preferences() domain.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(domain.Preferences, len(s.prefs))
	for k, v := range s.prefs {
		out[k] = v
	}
	return out
}

// Summary derives totals from the current state.
func (s *Store) Summary() domain.CartSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return s.summaryLocked()
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return itemCount(s.items)
}

func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return append([]domain.LineItem(nil), s.items...)
}

func (s *Store) Saved() []domain.SavedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SavedItem(nil), s.saved...)
}

func (s *Store) Coupon() *domain.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coupon == nil {
		return nil
	}
	cp := *s.coupon
	return &cp
}

func (s *Store) Location() *domain.UserLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == nil {
		return nil
	}
	loc := *s.location
	return &loc
}

func (s *Store) Slot() *domain.DeliverySlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == nil {
		return nil
	}
	slot := *s.slot
	return &slot
}

func (s *Store) ExpiresAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	if s.expiresAt == nil {
		return nil
	}
	t := *s.expiresAt
	return &t
}

// TransientError returns the last validation message until it expires.
func (s *Store) TransientError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr.value(s.now())
}

// State returns a consistent copy of everything checkout needs.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()

	st := State{
		Items:             append([]domain.LineItem(nil), s.items...),
		Saved:             append([]domain.SavedItem(nil), s.saved...),
		Summary:           s.summaryLocked(),
		DeliveryAvailable: s.quoteLocked().Available,
	}
	if s.coupon != nil {
		cp := *s.coupon
		st.Coupon = &cp
	}
	if s.location != nil {
		loc := *s.location
		st.Location = &loc
	}
	if s.slot != nil {
		slot := *s.slot
		st.Slot = &slot
	}
	if s.expiresAt != nil {
		t := *s.expiresAt
		st.ExpiresAt = &t
	}
	return st
}

// WatchExpiry clears the cart once its expiry passes, checking every interval
// until ctx is done.
func (s *Store) WatchExpiry(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			s.expireLocked()
			s.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// Total sums price times quantity over items.
func Total(items []domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func itemCount(items []domain.LineItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

func clampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	if q > MaxQuantityPerOperation {
		return MaxQuantityPerOperation
	}
	return q
}

func (s *Store) summaryLocked() domain.CartSummary {
	subtotal := Total(s.items)
	tax := subtotal.Mul(TaxRate).Round(2)
	fee := s.deliveryFeeLocked(subtotal)

	discount := decimal.Zero
	if s.coupon != nil && s.coupon.Eligible(subtotal) {
		discount = decimal.Min(s.coupon.Discount, subtotal)
	}

	return domain.CartSummary{
		Subtotal:    subtotal,
		ItemCount:   itemCount(s.items),
		DeliveryFee: fee,
		Tax:         tax,
		Discount:    discount,
		Total:       subtotal.Add(tax).Add(fee).Sub(discount),
	}
}

func (s *Store) quoteLocked() delivery.Quote {
	return s.policy.Quote(s.location, Total(s.items))
}

func (s *Store) deliveryFeeLocked(subtotal decimal.Decimal) decimal.Decimal {
	if s.coupon != nil && s.coupon.FreeShipping {
		return decimal.Zero
	}
	return s.policy.Quote(s.location, subtotal).Fee
}

// refreshDeliveryLocked mirrors the derived delivery fields onto the location.
func (s *Store) refreshDeliveryLocked() {
	if s.location == nil {
		return
	}
	subtotal := Total(s.items)
	q := s.policy.Quote(s.location, subtotal)
	s.location.DeliveryAvailable = q.Available
	s.location.EstimatedDelivery = q.EstimatedDelivery
	s.location.DeliveryFee = s.deliveryFeeLocked(subtotal)
}

// expireLocked clears the cart when its expiry has passed and reports whether it did.
func (s *Store) expireLocked() bool {
	if s.expiresAt == nil || !s.now().After(*s.expiresAt) {
		return false
	}
	s.logger.Info("cart expired, clearing", zap.Time("expired_at", *s.expiresAt), zap.Int("items", len(s.items)))
	s.clearLocked()
	s.changedLocked()
	return true
}

func (s *Store) clearLocked() {
	s.items = nil
	s.expiresAt = nil
}

func (s *Store) changedLocked() {
	s.refreshDeliveryLocked()
	s.persistLocked()
}

// persistLocked saves the snapshot. Failures are logged, not returned.
func (s *Store) persistLocked() {
	if s.persister == nil {
		return
	}
	snap := persistence.Snapshot{
		Items:       append([]domain.LineItem(nil), s.items...),
		Saved:       append([]domain.SavedItem(nil), s.saved...),
		Coupon:      s.coupon,
		ExpiresAt:   s.expiresAt,
		Location:    s.location,
		Preferences: s.prefs,
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()
	if err := s.persister.Save(ctx, snap); err != nil {
		s.logger.Error("failed to persist cart", zap.Error(err))
	}
}

func (s *Store) checkStockLocked(ctx context.Context, key, name string, want int) error {
	ok, available, err := s.stockAllowsLocked(ctx, key, want)
	if err != nil {
		s.logger.Warn("stock lookup failed", zap.String("stock_key", key), zap.Error(err))
		s.setErrorLocked("Could not verify stock for " + name)
		return fmt.Errorf("check stock for %s: %w", name, err)
	}
	if !ok {
		s.setErrorLocked(fmt.Sprintf("Only %d of %s available", max(available, 0), name))
		return ErrInsufficientStock
	}
	return nil
}

func (s *Store) stockAllowsLocked(ctx context.Context, key string, want int) (bool, int, error) {
	n, err := s.stock.Stock(ctx, key)
	if err != nil {
		return false, 0, err
	}
	if n == inventory.Unlimited {
		return true, n, nil
	}
	return want <= n, n, nil
}

func (s *Store) setErrorLocked(msg string) {
	s.lastErr.set(msg, s.now())
}

func (s *Store) findLocked(itemID string) int {
	for i := range s.items {
		if s.items[i].ID == itemID {
			return i
		}
	}
	return -1
}

func (s *Store) findSavedLocked(itemID string) int {
	for i := range s.saved {
		if s.saved[i].ID == itemID {
			return i
		}
	}
	return -1
}

func (s *Store) findByProductLocked(p domain.Product) int {
	for i := range s.items {
		if s.items[i].Matches(p) {
			return i
		}
	}
	return -1
}
