package model

// ClothingItem represents a purchasable cosmetic from the remote catalog.
type ClothingItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Cost     int64  `json:"cost"`
	Icon     string `json:"icon"`
	Category string `json:"category"`
}

// Ownership is the per-user mirror of server-held cosmetic state.
// The remote store is the source of truth; a Stale ownership was served
// from the local mirror because the server was unreachable.
type Ownership struct {
	UserID   int64   `json:"user_id"`
	OwnedIDs []int64 `json:"owned_clothing_ids"`
	ActiveID *int64  `json:"current_clothing_id"`
	Stale    bool    `json:"stale,omitempty"`
}

// Owns reports whether the given item id is in the owned set.
func (o Ownership) Owns(itemID int64) bool {
	for _, id := range o.OwnedIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// PurchaseReceipt is the server's confirmation of a successful purchase.
type PurchaseReceipt struct {
	RemainingCoins int64  `json:"remaining_coins"`
	ItemName       string `json:"item_name"`
	ItemIcon       string `json:"item_icon"`
	Cost           int64  `json:"cost"`
}
