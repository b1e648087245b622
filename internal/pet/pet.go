// Package pet simulates the Habi pet's food level. The level is purely
// cosmetic and lives only in the local store; it decays with elapsed time
// since the last persisted update.
package pet

import (
	"context"
	"strconv"
	"time"

	"github.com/habi/habi-go/internal/localstore"
)

const (
	// MaxLevel is the food gauge ceiling.
	MaxLevel = 100
	// DecayPerHour is how many points the gauge loses per elapsed hour.
	DecayPerHour = 2.0
	// DefaultLevel seeds the gauge for a pet with no saved state.
	DefaultLevel = 80
)

// Tracker persists and decays a per-user food level.
type Tracker struct {
	local *localstore.Store
	now   func() time.Time
}

// NewTracker creates a tracker backed by the given local store.
func NewTracker(local *localstore.Store) *Tracker {
	return &Tracker{local: local, now: time.Now}
}

// Level returns the current food level after applying decay for the time
// elapsed since the last update, and persists the refreshed value.
func (t *Tracker) Level(ctx context.Context, userID int64) (int, error) {
	level, lastUpdate, err := t.load(ctx, userID)
	if err != nil {
		return 0, err
	}

	elapsed := t.now().Sub(lastUpdate)
	if elapsed > 0 {
		level -= elapsed.Hours() * DecayPerHour
	}
	if level < 0 {
		level = 0
	}
	return int(level), t.save(ctx, userID, level)
}

// Feed raises the food level by amount, clamped to the gauge ceiling.
// Decay is applied first so feeding an abandoned pet starts from its
// actual level, not the last persisted one.
func (t *Tracker) Feed(ctx context.Context, userID int64, amount int) (int, error) {
	level, err := t.Level(ctx, userID)
	if err != nil {
		return 0, err
	}

	next := float64(level + amount)
	if next > MaxLevel {
		next = MaxLevel
	}
	if next < 0 {
		next = 0
	}
	return int(next), t.save(ctx, userID, next)
}

func (t *Tracker) load(ctx context.Context, userID int64) (float64, time.Time, error) {
	raw, ok, err := t.local.Get(ctx, localstore.FoodLevelKey(userID))
	if err != nil {
		return 0, time.Time{}, err
	}
	if !ok {
		return DefaultLevel, t.now(), nil
	}
	level, parseErr := strconv.ParseFloat(raw, 64)
	if parseErr != nil {
		level = DefaultLevel
	}

	lastUpdate := t.now()
	if raw, ok, err := t.local.Get(ctx, localstore.FoodUpdatedKey(userID)); err == nil && ok {
		if millis, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			lastUpdate = time.UnixMilli(millis).UTC()
		}
	}
	return level, lastUpdate, nil
}

func (t *Tracker) save(ctx context.Context, userID int64, level float64) error {
	if err := t.local.Set(ctx, localstore.FoodLevelKey(userID), strconv.FormatFloat(level, 'f', 2, 64)); err != nil {
		return err
	}
	return t.local.Set(ctx, localstore.FoodUpdatedKey(userID), strconv.FormatInt(t.now().UnixMilli(), 10))
}
