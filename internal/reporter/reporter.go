package reporter

import (
	"fmt"
	"idle-miner-sync/internal/models"
	"idle-miner-sync/internal/reward"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// OreLine 单种矿石的持有量与售价
type OreLine struct {
	Kind     string
	Quantity int64
	Value    int64
}

// Summary 存储一次会话结束时的进度汇总
type Summary struct {
	PlayerID  string
	Coins     int64
	Ores      []OreLine
	OreValue  int64 // 全部矿石按目录售价折算的金币
	Stats     models.Stats
	Location  string
	SyncID    string
	UpdatedAt time.Time
}

// Summarize 根据快照计算汇总。目录中没有售价的矿石价值记为 0。
func Summarize(snap *models.Snapshot, catalog *reward.Catalog) *Summary {
	if snap == nil {
		return &Summary{}
	}
	if catalog == nil {
		catalog = reward.NewCatalog(nil, nil)
	}

	s := &Summary{
		PlayerID:  snap.PlayerID,
		Coins:     snap.Ledger.Coins,
		Stats:     snap.Stats,
		Location:  snap.CurrentLocation,
		SyncID:    snap.SyncID,
		UpdatedAt: snap.UpdatedAt,
	}

	kinds := make([]string, 0, len(snap.Ledger.Ores))
	for kind, qty := range snap.Ledger.Ores {
		if qty > 0 {
			kinds = append(kinds, kind)
		}
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		qty := snap.Ledger.Ores[kind]
		value, err := catalog.SaleValue(kind, qty)
		if err != nil {
			value = 0
		}
		s.Ores = append(s.Ores, OreLine{Kind: kind, Quantity: qty, Value: value})
		s.OreValue += value
	}
	return s
}

// Render 把汇总以表格形式写入 w
func Render(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "========== 进度报告 ==========\n")
	fmt.Fprintf(w, "玩家:       %s\n", s.PlayerID)
	fmt.Fprintf(w, "所在矿区:   %s\n", s.Location)
	if !s.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "最近同步:   %s (%s)\n", s.UpdatedAt.Format("2006-01-02 15:04:05"), s.SyncID)
	}

	ores := table.NewWriter()
	ores.SetOutputMirror(w)
	ores.SetStyle(table.StyleLight)
	ores.AppendHeader(table.Row{"矿石", "数量", "价值(金币)"})
	for _, line := range s.Ores {
		ores.AppendRow(table.Row{line.Kind, line.Quantity, line.Value})
	}
	ores.AppendFooter(table.Row{"合计", "", s.OreValue})
	ores.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	ores.Render()

	stats := table.NewWriter()
	stats.SetOutputMirror(w)
	stats.SetStyle(table.StyleLight)
	stats.AppendRows([]table.Row{
		{"金币", s.Coins},
		{"累计采矿", s.Stats.TotalOresMined},
		{"点击次数", s.Stats.TotalClicks},
		{"游戏时长", (time.Duration(s.Stats.PlaySeconds) * time.Second).String()},
	})
	stats.Render()
}

// GenerateReport 汇总快照并打印报告
func GenerateReport(w io.Writer, snap *models.Snapshot, catalog *reward.Catalog) {
	Render(w, Summarize(snap, catalog))
}
