// Package catalog loads and serves the purchasable item set. Catalogs are
// immutable once built; the gate only reads them.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/vitwit/paygate/types"
)

var validate = validator.New()

// Catalog resolves item ids to priced items
type Catalog interface {
	// Lookup returns the item for the id, if any
	Lookup(id string) (types.Item, bool)

	// IDs returns all item ids in sorted order, for discovery responses
	IDs() []string
}

type staticCatalog struct {
	items map[string]types.Item
	ids   []string
}

// Load reads a catalog from a JSON file holding an array of items.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from a JSON array of items.
func Parse(data []byte) (Catalog, error) {
	var items []types.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	return Static(items...)
}

// Static builds a catalog from in-memory items, for tests and embedding.
func Static(items ...types.Item) (Catalog, error) {
	c := &staticCatalog{items: make(map[string]types.Item, len(items))}

	for i := range items {
		item := items[i]

		if err := validate.Struct(&item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}

		if _, dup := c.items[item.ID]; dup {
			return nil, fmt.Errorf("duplicate item id %q", item.ID)
		}

		c.items[item.ID] = item
		c.ids = append(c.ids, item.ID)
	}

	sort.Strings(c.ids)
	return c, nil
}

// ValidateForNetwork checks that every item is priceable on the given
// network: its currency resolves to a known asset and its price is
// representable in that asset's base units.
func ValidateForNetwork(c Catalog, network types.Network) error {
	for _, id := range c.IDs() {
		item, _ := c.Lookup(id)

		asset, err := types.AssetForCurrency(network, item.Currency)
		if err != nil {
			return fmt.Errorf("item %q: %w", id, err)
		}

		if _, err := types.ToBaseUnits(item.Price, asset.Decimals); err != nil {
			return fmt.Errorf("item %q: %w", id, err)
		}
	}
	return nil
}

func (c *staticCatalog) Lookup(id string) (types.Item, bool) {
	item, ok := c.items[id]
	return item, ok
}

func (c *staticCatalog) IDs() []string {
	ids := make([]string, len(c.ids))
	copy(ids, c.ids)
	return ids
}
