package reward

import (
	"fmt"
	"idle-miner-sync/internal/models"
	"sort"
)

var fallbackProfile = Profile{{Kind: models.OreStone, Weight: 100}}

// Catalog holds location distributions and ore sale values.
type Catalog struct {
	locations map[string]Profile
	values    map[string]int64
}

// DefaultLocations returns the built-in location distributions.
func DefaultLocations() map[string][]models.OreWeight {
	return map[string][]models.OreWeight{
		models.DefaultLocation: {
			{Kind: models.OreStone, Weight: 70},
			{Kind: models.OreCopper, Weight: 25},
			{Kind: models.OreIron, Weight: 5},
		},
	}
}

// DefaultOreValues returns the built-in coin value of one unit of each ore.
func DefaultOreValues() map[string]int64 {
	return map[string]int64{
		models.OreStone:   1,
		models.OreCopper:  3,
		models.OreIron:    5,
		models.OreGold:    10,
		models.OreDiamond: 50,
	}
}

// NewCatalog builds a catalog; nil arguments fall back to the defaults.
func NewCatalog(locations map[string][]models.OreWeight, values map[string]int64) *Catalog {
	if len(locations) == 0 {
		locations = DefaultLocations()
	}
	if len(values) == 0 {
		values = DefaultOreValues()
	}
	c := &Catalog{
		locations: make(map[string]Profile, len(locations)),
		values:    make(map[string]int64, len(values)),
	}
	for name, dist := range locations {
		c.locations[name] = append(Profile(nil), dist...)
	}
	for kind, v := range values {
		c.values[kind] = v
	}
	return c
}

// Profile returns the distribution for location, or all-stone when unknown.
func (c *Catalog) Profile(location string) Profile {
	if p, ok := c.locations[location]; ok && len(p) > 0 {
		return p
	}
	return fallbackProfile
}

// Sellable reports whether kind has a sale value.
func (c *Catalog) Sellable(kind string) bool {
	_, ok := c.values[kind]
	return ok
}

// SaleValue is the coin value of qty units of kind.
func (c *Catalog) SaleValue(kind string, qty int64) (int64, error) {
	v, ok := c.values[kind]
	if !ok {
		return 0, fmt.Errorf("unknown ore kind %q", kind)
	}
	if qty < 0 {
		return 0, fmt.Errorf("%w: negative sale quantity %d", models.ErrInvariantViolation, qty)
	}
	return v * qty, nil
}

// SellableKinds returns the sellable kinds in a stable order.
func (c *Catalog) SellableKinds() []string {
	kinds := make([]string, 0, len(c.values))
	for k := range c.values {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
