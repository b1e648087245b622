// Package games implements the chance-based minigames. Winnings are
// advisory: the server owns the coin ledger, the client only gates play
// frequency and renders outcomes.
package games

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/habi/habi-go/internal/localstore"
)

// ErrDailyLimitReached signals the user already played today.
var ErrDailyLimitReached = errors.New("slot machine already played today")

// dateLayout stamps the last-play gate, one play per calendar day.
const dateLayout = "2006-01-02"

// reelSymbols is the symbol count per reel.
const reelSymbols = 5

// SpinResult is one slot machine outcome.
type SpinResult struct {
	Reels  [3]int `json:"reels"`
	Payout int64  `json:"payout"`
}

// SlotMachine gates and spins the daily slot machine.
type SlotMachine struct {
	local *localstore.Store
	now   func() time.Time
	roll  func(n int) int
}

// NewSlotMachine creates a slot machine backed by the given local store.
func NewSlotMachine(local *localstore.Store) *SlotMachine {
	return &SlotMachine{
		local: local,
		now:   time.Now,
		roll:  rand.Intn,
	}
}

// CanPlay reports whether the user still has a play available today.
func (m *SlotMachine) CanPlay(ctx context.Context, userID int64) (bool, error) {
	raw, ok, err := m.local.Get(ctx, localstore.SlotLastPlayKey(userID))
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return raw != m.now().Format(dateLayout), nil
}

// Spin consumes the user's daily play and returns the outcome. The gate is
// stamped before the reels settle so a crash mid-spin cannot grant a
// second play.
func (m *SlotMachine) Spin(ctx context.Context, userID int64) (SpinResult, error) {
	ok, err := m.CanPlay(ctx, userID)
	if err != nil {
		return SpinResult{}, err
	}
	if !ok {
		return SpinResult{}, ErrDailyLimitReached
	}

	if err := m.local.Set(ctx, localstore.SlotLastPlayKey(userID), m.now().Format(dateLayout)); err != nil {
		return SpinResult{}, err
	}

	var result SpinResult
	for i := range result.Reels {
		result.Reels[i] = m.roll(reelSymbols)
	}
	result.Payout = payout(result.Reels)
	return result, nil
}

// payout maps reel combinations to advisory winnings.
func payout(reels [3]int) int64 {
	switch {
	case reels[0] == reels[1] && reels[1] == reels[2]:
		return 100
	case reels[0] == reels[1] || reels[1] == reels[2] || reels[0] == reels[2]:
		return 20
	default:
		return 0
	}
}
