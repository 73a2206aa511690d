package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/fjod/go_cart/seafood-cart/internal/storage"
	"go.uber.org/zap"
)

// Storage keys, relative to the session namespace.
const (
	KeyCart        = "cart"
	KeySaved       = "savedForLater"
	KeyExpiry      = "cartExpiry"
	KeyCoupon      = "appliedCoupon"
	KeyLocation    = "userLocation"
	KeyPreferences = "userPreferences"
)

const keyPrefix = "seafood:cart:"

// Snapshot is everything the cart keeps across restarts.
type Snapshot struct {
	Items       []domain.LineItem
	Saved       []domain.SavedItem
	Coupon      *domain.Coupon
	ExpiresAt   *time.Time
	Location    *domain.UserLocation
	Preferences domain.Preferences
}

// Adapter reads and writes one session's snapshot to a storage backend.
type Adapter struct {
	store     storage.Storage
	namespace string
	logger    *zap.Logger
}

func NewAdapter(store storage.Storage, sessionID string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		store:     store,
		namespace: keyPrefix + sessionID + ":",
		logger:    logger.With(zap.String("session_id", sessionID)),
	}
}

// Key returns the fully qualified storage key for name.
func (a *Adapter) Key(name string) string {
	return a.namespace + name
}

// Load reads every key independently. Unparseable values are treated as absent;
// a corrupt cart or saved list resets all cart related keys so the snapshot
// stays consistent. Only storage failures are returned as errors.
func (a *Adapter) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	cartCorrupt, err := a.read(ctx, KeyCart, &snap.Items)
	if err != nil {
		return Snapshot{}, err
	}
	savedCorrupt, err := a.read(ctx, KeySaved, &snap.Saved)
	if err != nil {
		return Snapshot{}, err
	}

	if cartCorrupt || savedCorrupt {
		a.logger.Warn("corrupt cart snapshot, resetting cart storage",
			zap.Bool("cart_corrupt", cartCorrupt),
			zap.Bool("saved_corrupt", savedCorrupt))
		if errReset := a.Reset(ctx); errReset != nil {
			a.logger.Error("failed to reset cart storage", zap.Error(errReset))
		}
		snap.Items = nil
		snap.Saved = nil
	} else {
		raw, errGet := a.get(ctx, KeyExpiry)
		if errGet != nil {
			return Snapshot{}, errGet
		}
		if raw != "" {
			if t, errParse := time.Parse(time.RFC3339Nano, raw); errParse == nil {
				snap.ExpiresAt = &t
			} else {
				a.logger.Warn("ignoring unparseable cart expiry", zap.String("value", raw))
			}
		}

		var c domain.Coupon
		corrupt, errRead := a.read(ctx, KeyCoupon, &c)
		if errRead != nil {
			return Snapshot{}, errRead
		}
		if !corrupt && c.Code != "" {
			snap.Coupon = &c
		}
	}

	var loc domain.UserLocation
	corrupt, err := a.read(ctx, KeyLocation, &loc)
	if err != nil {
		return Snapshot{}, err
	}
	if !corrupt && (loc.Address != "" || loc.Coordinates != nil) {
		snap.Location = &loc
	}

	corrupt, err = a.read(ctx, KeyPreferences, &snap.Preferences)
	if err != nil {
		return Snapshot{}, err
	}
	if corrupt {
		snap.Preferences = nil
	}

	return snap, nil
}

// Save writes the snapshot. Expiry and coupon keys are removed when unset.
func (a *Adapter) Save(ctx context.Context, snap Snapshot) error {
	var errs []error

	items := snap.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	errs = append(errs, a.write(ctx, KeyCart, items))

	saved := snap.Saved
	if saved == nil {
		saved = []domain.SavedItem{}
	}
	errs = append(errs, a.write(ctx, KeySaved, saved))

	if snap.ExpiresAt != nil {
		errs = append(errs, a.store.Set(ctx, a.Key(KeyExpiry), snap.ExpiresAt.UTC().Format(time.RFC3339Nano)))
	} else {
		errs = append(errs, a.store.Delete(ctx, a.Key(KeyExpiry)))
	}

	if snap.Coupon != nil {
		errs = append(errs, a.write(ctx, KeyCoupon, snap.Coupon))
	} else {
		errs = append(errs, a.store.Delete(ctx, a.Key(KeyCoupon)))
	}

	if snap.Location != nil {
		errs = append(errs, a.write(ctx, KeyLocation, snap.Location))
	}
	if snap.Preferences != nil {
		errs = append(errs, a.write(ctx, KeyPreferences, snap.Preferences))
	}

	return errors.Join(errs...)
}

// Reset clears cart, saved items, expiry and coupon. Location and preferences survive.
func (a *Adapter) Reset(ctx context.Context) error {
	return a.store.Delete(ctx, a.Key(KeyCart), a.Key(KeySaved), a.Key(KeyExpiry), a.Key(KeyCoupon))
}

func (a *Adapter) get(ctx context.Context, name string) (string, error) {
	raw, err := a.store.Get(ctx, a.Key(name))
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", name, err)
	}
	return raw, nil
}

// read decodes the value under name into dst and reports whether it was corrupt.
func (a *Adapter) read(ctx context.Context, name string, dst any) (bool, error) {
	raw, err := a.get(ctx, name)
	if err != nil {
		return false, err
	}
	if raw == "" {
		return false, nil
	}
	if errUnmarshal := json.Unmarshal([]byte(raw), dst); errUnmarshal != nil {
		a.logger.Warn("ignoring unparseable stored value",
			zap.String("key", name), zap.Error(errUnmarshal))
		return true, nil
	}
	return false, nil
}

func (a *Adapter) write(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", name, err)
	}
	if err := a.store.Set(ctx, a.Key(name), string(data)); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}
