// Package mirror maintains the best-effort local copy of server-held
// per-user ownership state. The remote store is the source of truth: on
// every successful fetch the mirror is overwritten wholesale, and the
// local copy is read only while the server is unreachable.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/habi/habi-go/internal/events"
	"github.com/habi/habi-go/internal/habiapi"
	"github.com/habi/habi-go/internal/localstore"
	"github.com/habi/habi-go/internal/model"
	"github.com/habi/habi-go/internal/session"
)

var (
	ErrAlreadyOwned      = errors.New("item already owned")
	ErrInsufficientCoins = errors.New("not enough coins")
	ErrOperationInFlight = errors.New("another purchase or equip is in progress")
	ErrSessionExpired    = errors.New("session expired, please log in again")
)

// Store reconciles the local ownership mirror with the remote API.
type Store struct {
	api     *habiapi.Client
	local   *localstore.Store
	session *session.Session
	bus     *events.Bus
	logger  *slog.Logger

	autoEquip bool

	// Advisory in-flight guard for purchase/equip. It covers the common
	// double-submit case within one process; separate processes are not
	// coordinated and rely on the server plus full-refresh reconciliation.
	mu       sync.Mutex
	inFlight bool
}

// Option configures a Store.
type Option func(*Store)

// WithAutoEquip controls whether a purchased item is worn immediately.
// Enabled by default.
func WithAutoEquip(enabled bool) Option {
	return func(s *Store) { s.autoEquip = enabled }
}

// WithLogger sets the logger used for degraded-path warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a reconciliation store.
func New(api *habiapi.Client, local *localstore.Store, sess *session.Session, bus *events.Bus, opts ...Option) *Store {
	s := &Store{
		api:       api,
		local:     local,
		session:   sess,
		bus:       bus,
		logger:    slog.Default(),
		autoEquip: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchOwnership fetches server truth and overwrites the mirror with it.
// While the server is unreachable it returns the last-known mirror marked
// stale, or an empty ownership when no mirror exists. A 401 clears all
// authentication and ownership state.
func (s *Store) FetchOwnership(ctx context.Context) (model.Ownership, error) {
	uid, token, err := s.resolveUser(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return model.Ownership{OwnedIDs: []int64{}}, nil
	}
	if err != nil {
		return model.Ownership{}, err
	}

	owned, active, err := s.api.Owned(ctx, token)
	if err == nil {
		own := model.Ownership{UserID: uid, OwnedIDs: owned, ActiveID: active}
		// The server should never report an active item outside the owned
		// set; correct it to null rather than propagate the violation.
		if own.ActiveID != nil && !own.Owns(*own.ActiveID) {
			s.logger.Warn("server active item not in owned set, correcting to null",
				"user_id", uid, "active_id", *own.ActiveID)
			own.ActiveID = nil
		}
		if err := s.writeMirror(ctx, own); err != nil {
			s.logger.Warn("mirror write failed", "user_id", uid, "error", err)
		}
		s.bus.Publish(events.Event{Topic: events.TopicClothingChanged, UserID: uid})
		return own, nil
	}

	if errors.Is(err, habiapi.ErrUnauthorized) {
		s.expireSession(ctx, uid)
		return model.Ownership{}, ErrSessionExpired
	}

	// Offline or server failure: bridge the gap with the local mirror.
	cached, found, readErr := s.readMirror(ctx, uid)
	if readErr != nil {
		s.logger.Warn("mirror read failed", "user_id", uid, "error", readErr)
	}
	if found {
		cached.Stale = true
		return cached, nil
	}
	if err := s.ClearForUser(ctx, uid); err != nil {
		s.logger.Warn("mirror clear failed", "user_id", uid, "error", err)
	}
	return model.Ownership{UserID: uid, OwnedIDs: []int64{}}, nil
}

// SetActiveItem changes the worn cosmetic. Without a session the change is
// written to the local mirror only, best-effort and silent. With a session
// the mirror is updated only after the server confirms; on failure the
// previous mirror state is kept and server truth is re-fetched.
func (s *Store) SetActiveItem(ctx context.Context, itemID int64) error {
	uid, token, err := s.resolveUser(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return s.local.Set(ctx, localstore.GuestActiveKey, strconv.FormatInt(itemID, 10))
	}
	if err != nil {
		return err
	}

	if !s.begin() {
		return ErrOperationInFlight
	}
	defer s.end()

	return s.equip(ctx, uid, token, itemID)
}

// PurchaseItem buys an item, validating locally before any network call.
// On success the owned set is extended, the coin balance overwritten from
// the server's receipt, and (by default) the item is worn immediately.
func (s *Store) PurchaseItem(ctx context.Context, itemID, cost int64) (model.PurchaseReceipt, error) {
	uid, token, err := s.resolveUser(ctx)
	if err != nil {
		return model.PurchaseReceipt{}, err
	}

	own, found, readErr := s.readMirror(ctx, uid)
	if readErr != nil {
		s.logger.Warn("mirror read failed", "user_id", uid, "error", readErr)
	}
	if found && own.Owns(itemID) {
		return model.PurchaseReceipt{}, ErrAlreadyOwned
	}
	if balance, ok, _ := s.cachedBalance(ctx, uid); ok && balance < cost {
		return model.PurchaseReceipt{}, ErrInsufficientCoins
	}

	if !s.begin() {
		return model.PurchaseReceipt{}, ErrOperationInFlight
	}
	defer s.end()

	receipt, err := s.api.Purchase(ctx, token, itemID)
	if err != nil {
		if errors.Is(err, habiapi.ErrUnauthorized) {
			s.expireSession(ctx, uid)
			return model.PurchaseReceipt{}, ErrSessionExpired
		}
		return model.PurchaseReceipt{}, err
	}

	if !found {
		own = model.Ownership{UserID: uid, OwnedIDs: []int64{}}
	}
	if !own.Owns(itemID) {
		own.OwnedIDs = append(own.OwnedIDs, itemID)
	}
	if err := s.writeMirror(ctx, own); err != nil {
		s.logger.Warn("mirror write failed", "user_id", uid, "error", err)
	}
	if err := s.local.Set(ctx, localstore.CachedCoinsKey(uid), strconv.FormatInt(receipt.RemainingCoins, 10)); err != nil {
		s.logger.Warn("balance write failed", "user_id", uid, "error", err)
	}
	s.bus.Publish(events.Event{Topic: events.TopicCoinsUpdated, UserID: uid, Value: receipt.RemainingCoins})
	s.bus.Publish(events.Event{Topic: events.TopicClothingChanged, UserID: uid, Value: itemID})

	if s.autoEquip {
		if err := s.equip(ctx, uid, token, itemID); err != nil {
			// The purchase itself succeeded; the equip resync already ran.
			s.logger.Warn("auto-equip after purchase failed", "user_id", uid, "item_id", itemID, "error", err)
		}
	}
	return receipt, nil
}

// RefreshCoins fetches the authoritative balance, overwriting the cached
// value. While offline it returns the cached balance marked stale.
func (s *Store) RefreshCoins(ctx context.Context) (balance int64, stale bool, err error) {
	uid, token, err := s.resolveUser(ctx)
	if err != nil {
		return 0, false, err
	}

	coins, err := s.api.Coins(ctx, token)
	if err == nil {
		if err := s.local.Set(ctx, localstore.CachedCoinsKey(uid), strconv.FormatInt(coins, 10)); err != nil {
			s.logger.Warn("balance write failed", "user_id", uid, "error", err)
		}
		s.bus.Publish(events.Event{Topic: events.TopicCoinsUpdated, UserID: uid, Value: coins})
		return coins, false, nil
	}
	if errors.Is(err, habiapi.ErrUnauthorized) {
		s.expireSession(ctx, uid)
		return 0, false, ErrSessionExpired
	}
	if cached, ok, _ := s.cachedBalance(ctx, uid); ok {
		return cached, true, nil
	}
	return 0, false, err
}

// ClearForUser deletes every local key belonging to the given user id,
// plus legacy unscoped keys, on logout or account switch.
func (s *Store) ClearForUser(ctx context.Context, userID int64) error {
	keys := []string{
		localstore.OwnedClothesKey(userID),
		localstore.CurrentClothingKey(userID),
		localstore.CachedCoinsKey(userID),
		localstore.FoodLevelKey(userID),
		localstore.FoodUpdatedKey(userID),
		localstore.SlotLastPlayKey(userID),
	}
	keys = append(keys, localstore.LegacyKeys(userID)...)
	return s.local.Delete(ctx, keys...)
}

// Logout clears the credential and the current user's mirror.
func (s *Store) Logout(ctx context.Context) error {
	uid, _, err := s.resolveUser(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return nil
	}
	if err == nil {
		if clearErr := s.ClearForUser(ctx, uid); clearErr != nil {
			s.logger.Warn("mirror clear failed", "user_id", uid, "error", clearErr)
		}
	}
	if err := s.local.Delete(ctx, localstore.LastUserKey); err != nil {
		s.logger.Warn("last-user clear failed", "error", err)
	}
	return s.session.Clear(ctx)
}

// equip performs the confirmed-then-applied wear flow. Callers hold the
// in-flight guard.
func (s *Store) equip(ctx context.Context, uid int64, token string, itemID int64) error {
	if err := s.api.Wear(ctx, token, itemID); err != nil {
		if errors.Is(err, habiapi.ErrUnauthorized) {
			s.expireSession(ctx, uid)
			return ErrSessionExpired
		}
		s.resync(ctx, uid, token)
		return err
	}

	own, found, _ := s.readMirror(ctx, uid)
	if !found {
		own = model.Ownership{UserID: uid, OwnedIDs: []int64{}}
	}
	// The server confirmed the wear, so it owns the item even if the local
	// owned set is behind; extend it to preserve the membership invariant.
	if !own.Owns(itemID) {
		own.OwnedIDs = append(own.OwnedIDs, itemID)
	}
	own.ActiveID = &itemID
	if err := s.writeMirror(ctx, own); err != nil {
		s.logger.Warn("mirror write failed", "user_id", uid, "error", err)
	}
	s.bus.Publish(events.Event{Topic: events.TopicClothingChanged, UserID: uid, Value: itemID})
	return nil
}

// resync overwrites the mirror with server truth after a failed mutation,
// best-effort.
func (s *Store) resync(ctx context.Context, uid int64, token string) {
	owned, active, err := s.api.Owned(ctx, token)
	if err != nil {
		s.logger.Warn("resync after failed mutation skipped", "user_id", uid, "error", err)
		return
	}
	own := model.Ownership{UserID: uid, OwnedIDs: owned, ActiveID: active}
	if own.ActiveID != nil && !own.Owns(*own.ActiveID) {
		own.ActiveID = nil
	}
	if err := s.writeMirror(ctx, own); err != nil {
		s.logger.Warn("mirror write failed", "user_id", uid, "error", err)
	}
	s.bus.Publish(events.Event{Topic: events.TopicClothingChanged, UserID: uid})
}

// resolveUser returns the current user id and token. Detecting a different
// id than the previous session triggers a full clear of the old user's
// keys rather than an incremental merge.
func (s *Store) resolveUser(ctx context.Context) (int64, string, error) {
	token, err := s.session.Token(ctx)
	if err != nil {
		return 0, "", err
	}
	uid, err := s.session.UserID(ctx)
	if err != nil {
		return 0, "", err
	}

	if raw, ok, _ := s.local.Get(ctx, localstore.LastUserKey); ok {
		if prev, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil && prev != uid {
			s.logger.Info("user switch detected, clearing previous mirror", "previous", prev, "current", uid)
			if err := s.ClearForUser(ctx, prev); err != nil {
				s.logger.Warn("mirror clear failed", "user_id", prev, "error", err)
			}
		}
	}
	if err := s.local.Set(ctx, localstore.LastUserKey, strconv.FormatInt(uid, 10)); err != nil {
		s.logger.Warn("last-user write failed", "error", err)
	}
	return uid, token, nil
}

// expireSession clears all local authentication and ownership state after
// the server reported a 401.
func (s *Store) expireSession(ctx context.Context, uid int64) {
	if err := s.ClearForUser(ctx, uid); err != nil {
		s.logger.Warn("mirror clear failed", "user_id", uid, "error", err)
	}
	if err := s.local.Delete(ctx, localstore.LastUserKey); err != nil {
		s.logger.Warn("last-user clear failed", "error", err)
	}
	if err := s.session.Clear(ctx); err != nil {
		s.logger.Warn("session clear failed", "error", err)
	}
}

// readMirror loads the local copy for the given user. found is true only
// when the owned-set key exists.
func (s *Store) readMirror(ctx context.Context, uid int64) (model.Ownership, bool, error) {
	raw, ok, err := s.local.Get(ctx, localstore.OwnedClothesKey(uid))
	if err != nil || !ok {
		return model.Ownership{}, false, err
	}

	var owned []int64
	if err := json.Unmarshal([]byte(raw), &owned); err != nil {
		return model.Ownership{}, false, err
	}
	own := model.Ownership{UserID: uid, OwnedIDs: owned}
	if own.OwnedIDs == nil {
		own.OwnedIDs = []int64{}
	}

	if raw, ok, err := s.local.Get(ctx, localstore.CurrentClothingKey(uid)); err == nil && ok {
		if id, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			own.ActiveID = &id
		}
	}
	if own.ActiveID != nil && !own.Owns(*own.ActiveID) {
		own.ActiveID = nil
	}
	return own, true, nil
}

// writeMirror overwrites the local copy with the given ownership.
func (s *Store) writeMirror(ctx context.Context, own model.Ownership) error {
	payload, err := json.Marshal(own.OwnedIDs)
	if err != nil {
		return err
	}
	if err := s.local.Set(ctx, localstore.OwnedClothesKey(own.UserID), string(payload)); err != nil {
		return err
	}
	if own.ActiveID == nil {
		return s.local.Delete(ctx, localstore.CurrentClothingKey(own.UserID))
	}
	return s.local.Set(ctx, localstore.CurrentClothingKey(own.UserID), strconv.FormatInt(*own.ActiveID, 10))
}

// cachedBalance reads the last-known coin balance for the user.
func (s *Store) cachedBalance(ctx context.Context, uid int64) (int64, bool, error) {
	raw, ok, err := s.local.Get(ctx, localstore.CachedCoinsKey(uid))
	if err != nil || !ok {
		return 0, false, err
	}
	balance, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		return 0, false, nil
	}
	return balance, true, nil
}

func (s *Store) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *Store) end() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}
