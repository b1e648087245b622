package localstore

import "fmt"

// TokenKey holds the bearer credential for the current session.
const TokenKey = "authToken"

// LastUserKey records the most recently resolved user id. A change in the
// resolved id triggers a full clear-and-resync of the previous user's keys.
const LastUserKey = "lastUserId"

// GuestActiveKey holds the active cosmetic chosen before any login. It is
// best-effort only and never reconciled with the server.
const GuestActiveKey = "currentClothing_guest"

// Per-user keys of the unified mirror schema.

func OwnedClothesKey(userID int64) string {
	return fmt.Sprintf("ownedClothes_%d", userID)
}

func CurrentClothingKey(userID int64) string {
	return fmt.Sprintf("currentClothing_%d", userID)
}

func CachedCoinsKey(userID int64) string {
	return fmt.Sprintf("cachedCoins_%d", userID)
}

func FoodLevelKey(userID int64) string {
	return fmt.Sprintf("habiFoodLevel_%d", userID)
}

func FoodUpdatedKey(userID int64) string {
	return fmt.Sprintf("habiLastUpdate_%d", userID)
}

func SlotLastPlayKey(userID int64) string {
	return fmt.Sprintf("slotMachine_lastPlay_user_%d", userID)
}

// LegacyKeys lists keys written by earlier schema versions: the second
// clothing helper's duplicate key and the unscoped variants. They are
// removed on every per-user clear so upgrades converge on one schema.
func LegacyKeys(userID int64) []string {
	return []string{
		fmt.Sprintf("currentHabiClothing_%d", userID),
		"token",
		"cached_coins",
		"habiFoodLevel",
		"habiLastUpdate",
	}
}
