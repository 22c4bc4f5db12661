package reporter

import (
	"bytes"
	"idle-miner-sync/internal/models"
	"idle-miner-sync/internal/reward"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	snap := models.NewSnapshot("player-1", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	snap.Ledger.Ores = map[string]int64{
		models.OreStone:  10,
		models.OreIron:   2,
		models.OreCopper: 0,
		"mithril":        1,
	}
	snap.Ledger.Coins = 42
	snap.Stats.TotalClicks = 7

	s := Summarize(snap, reward.NewCatalog(nil, nil))
	require.Len(t, s.Ores, 3, "empty holdings are skipped")
	assert.Equal(t, OreLine{Kind: models.OreIron, Quantity: 2, Value: 10}, s.Ores[0])
	assert.Equal(t, OreLine{Kind: "mithril", Quantity: 1, Value: 0}, s.Ores[1])
	assert.Equal(t, OreLine{Kind: models.OreStone, Quantity: 10, Value: 10}, s.Ores[2])
	assert.Equal(t, int64(20), s.OreValue)
	assert.Equal(t, int64(42), s.Coins)
}

func TestSummarizeNil(t *testing.T) {
	s := Summarize(nil, nil)
	assert.Empty(t, s.Ores)
}

func TestGenerateReport(t *testing.T) {
	snap := models.NewSnapshot("player-1", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	snap.Ledger.Ores[models.OreDiamond] = 3
	snap.Stats.PlaySeconds = 90
	snap.SyncID = "abc123"

	var buf bytes.Buffer
	GenerateReport(&buf, snap, nil)

	out := buf.String()
	assert.Contains(t, out, "player-1")
	assert.Contains(t, out, "diamond")
	assert.Contains(t, out, "150")
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "1m30s")
}
