package habiapi

import (
	"context"
	"net/http"

	"github.com/habi/habi-go/internal/model"
)

// fallbackCatalog is served when the backend returns an empty or malformed
// catalog, so the shop is never blank.
var fallbackCatalog = []model.ClothingItem{
	{ID: 1, Name: "Red Scarf", Cost: 50, Icon: "🧣", Category: "neck"},
	{ID: 2, Name: "Top Hat", Cost: 120, Icon: "🎩", Category: "head"},
	{ID: 3, Name: "Sunglasses", Cost: 80, Icon: "🕶️", Category: "face"},
	{ID: 4, Name: "Bow Tie", Cost: 60, Icon: "🎀", Category: "neck"},
	{ID: 5, Name: "Crown", Cost: 300, Icon: "👑", Category: "head"},
}

// Catalog returns the purchasable item list. An empty or undecodable
// response falls back to a fixed built-in catalog.
func (c *Client) Catalog(ctx context.Context) ([]model.ClothingItem, error) {
	var items []model.ClothingItem
	err := c.do(ctx, http.MethodGet, "/api/clothing", "", nil, &items)
	if err != nil {
		if _, ok := err.(*APIError); ok {
			return nil, err
		}
		// Non-array payloads decode as an error; treat like an empty catalog.
		items = nil
	}
	if len(items) == 0 {
		out := make([]model.ClothingItem, len(fallbackCatalog))
		copy(out, fallbackCatalog)
		return out, nil
	}
	return items, nil
}
