package reward

import (
	"errors"
	"idle-miner-sync/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogDefaults(t *testing.T) {
	c := NewCatalog(nil, nil)
	assert.Equal(t, surface(), c.Profile(models.DefaultLocation))
	assert.Equal(t, fallbackProfile, c.Profile("atlantis"))

	v, err := c.SaleValue(models.OreDiamond, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(150), v)
}

func TestCatalogCustomLocations(t *testing.T) {
	c := NewCatalog(map[string][]models.OreWeight{
		"deepCave": {{Kind: models.OreGold, Weight: 1}},
	}, map[string]int64{models.OreGold: 12})

	assert.Equal(t, models.OreGold, Choose(c.Profile("deepCave"), 0.5))
	assert.True(t, c.Sellable(models.OreGold))
	assert.False(t, c.Sellable(models.OreStone))
	assert.Equal(t, []string{models.OreGold}, c.SellableKinds())
}

func TestSaleValueErrors(t *testing.T) {
	c := NewCatalog(nil, nil)
	_, err := c.SaleValue("mithril", 1)
	assert.Error(t, err)

	_, err = c.SaleValue(models.OreStone, -1)
	assert.True(t, errors.Is(err, models.ErrInvariantViolation))
}
