package models

import (
	"fmt"
	"sort"
	"time"
)

// 常用的资源种类与升级种类键
const (
	OreStone   = "stone"
	OreCopper  = "copper"
	OreIron    = "iron"
	OreGold    = "gold"
	OreDiamond = "diamond"

	UpgradePickaxeLevel = "pickaxeLevel" // 每次采矿的矿石倍数
	UpgradeMiningSpeed  = "miningSpeed"  // 手动与自动采矿的进度速度
	UpgradeOreQuality   = "oreQuality"   // 每个周期的矿石数量倍数
	UpgradeAutoMiner    = "autoMiner"    // 自动采矿，每级每秒 +0.5 进度

	DefaultLocation = "surfaceMine"

	ProgressMax = 100.0 // 进度条满值
)

// ProgressState 描述一个累积周期内的采矿进度。
// Value 在一个周期内单调不减，完成时恰好归零一次。
type ProgressState struct {
	Value              float64 `json:"value"`                // 当前进度, 0..100
	PerActionIncrement float64 `json:"per_action_increment"` // 每次动作的默认增量
}

// ResourceLedger 记录矿石数量与金币余额，任何字段都不能为负
type ResourceLedger struct {
	Ores  map[string]int64 `json:"ores"`  // 矿石种类 -> 数量
	Coins int64            `json:"coins"` // 金币余额
}

// Validate 检查账本不变量，违反时返回 ErrInvariantViolation
func (l ResourceLedger) Validate() error {
	if l.Coins < 0 {
		return fmt.Errorf("%w: coins would become %d", ErrInvariantViolation, l.Coins)
	}
	kinds := make([]string, 0, len(l.Ores))
	for kind := range l.Ores {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if qty := l.Ores[kind]; qty < 0 {
			return fmt.Errorf("%w: ore %q would become %d", ErrInvariantViolation, kind, qty)
		}
	}
	return nil
}

// Clone 返回账本的深拷贝
func (l ResourceLedger) Clone() ResourceLedger {
	return ResourceLedger{Ores: cloneCounts(l.Ores), Coins: l.Coins}
}

// ModifierSet 升级种类 -> 等级。只读输入，由购买流程（外部）修改。
type ModifierSet map[string]int

// Level 返回某个升级的等级，缺省时倍率类升级为 1，累加类升级为 0
func (m ModifierSet) Level(kind string) int {
	if lvl, ok := m[kind]; ok {
		return lvl
	}
	if IsPowerScaling(kind) {
		return 1
	}
	return 0
}

// IsPowerScaling 判断升级是否为倍率类（默认等级 1）
func IsPowerScaling(kind string) bool {
	switch kind {
	case UpgradePickaxeLevel, UpgradeMiningSpeed, UpgradeOreQuality:
		return true
	}
	return false
}

// Stats 辅助计数器
type Stats struct {
	TotalOresMined int64 `json:"total_ores_mined"`
	TotalClicks    int64 `json:"total_clicks"`
	PlaySeconds    int64 `json:"play_seconds"`
}

// EnergyState 体力及其回复参数
type EnergyState struct {
	Current        float64   `json:"current"`
	Max            float64   `json:"max"`
	RegenPerMinute float64   `json:"regen_per_minute"`
	LastRegen      time.Time `json:"last_regen"`
}

// Counters 是快照中"本设备累加"字段的投影，用作合并时的基线
type Counters struct {
	Ores  map[string]int64 `json:"ores"`
	Coins int64            `json:"coins"`
	Stats Stats            `json:"stats"`
}

// Clone 返回基线的深拷贝
func (c Counters) Clone() Counters {
	return Counters{Ores: cloneCounts(c.Ores), Coins: c.Coins, Stats: c.Stats}
}

// Snapshot 是一个玩家完整的持久化进度记录。
// 远端存储中只有一份权威副本，本地副本只是可能过期的缓存。
type Snapshot struct {
	PlayerID           string            `json:"player_id"`
	Ledger             ResourceLedger    `json:"ledger"`
	Modifiers          ModifierSet       `json:"upgrades"`
	Workers            map[string]int    `json:"workers"`
	Equipment          map[string]string `json:"equipment"`
	CurrentLocation    string            `json:"current_location"`
	UnlockedLocations  []string          `json:"unlocked_locations"`
	PrestigeMultiplier float64           `json:"prestige_multiplier"`
	Progress           float64           `json:"mining_progress"`
	Energy             EnergyState       `json:"energy"`
	Stats              Stats             `json:"stats"`
	SyncID             string            `json:"sync_id"`    // 最近一次写入该快照的同步ID
	UpdatedAt          time.Time         `json:"updated_at"` // 最近一次写入时间

	// Baseline 是计算本地增量时最后已知的远端计数器，不持久化。
	// 为 nil 表示本地从未见过远端。
	Baseline *Counters `json:"-"`
}

// NewSnapshot 创建首次登录时的默认快照
func NewSnapshot(playerID string, now time.Time) *Snapshot {
	return &Snapshot{
		PlayerID:           playerID,
		Ledger:             ResourceLedger{Ores: map[string]int64{}},
		Modifiers:          ModifierSet{},
		Workers:            map[string]int{},
		Equipment:          map[string]string{},
		CurrentLocation:    DefaultLocation,
		UnlockedLocations:  []string{DefaultLocation},
		PrestigeMultiplier: 1,
		Energy: EnergyState{
			Current:        100,
			Max:            100,
			RegenPerMinute: 1,
			LastRegen:      now,
		},
		UpdatedAt: now,
	}
}

// Counters 返回快照的累加字段
func (s *Snapshot) Counters() Counters {
	return Counters{Ores: cloneCounts(s.Ledger.Ores), Coins: s.Ledger.Coins, Stats: s.Stats}
}

// Clone 返回快照的深拷贝，nil 与空集合保持原样
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Ledger = s.Ledger.Clone()
	if s.Modifiers != nil {
		c.Modifiers = make(ModifierSet, len(s.Modifiers))
		for k, v := range s.Modifiers {
			c.Modifiers[k] = v
		}
	}
	if s.Workers != nil {
		c.Workers = make(map[string]int, len(s.Workers))
		for k, v := range s.Workers {
			c.Workers[k] = v
		}
	}
	if s.Equipment != nil {
		c.Equipment = make(map[string]string, len(s.Equipment))
		for k, v := range s.Equipment {
			c.Equipment[k] = v
		}
	}
	if s.UnlockedLocations != nil {
		c.UnlockedLocations = make([]string, len(s.UnlockedLocations))
		copy(c.UnlockedLocations, s.UnlockedLocations)
	}
	if s.Baseline != nil {
		b := s.Baseline.Clone()
		c.Baseline = &b
	}
	return &c
}

// SyncResult 持久化结果，每次尝试要么全部成功要么失败
type SyncResult struct {
	Succeeded bool `json:"succeeded"`
}

// Reward 一次完成的采矿周期产出的资源
type Reward struct {
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
}

func cloneCounts(src map[string]int64) map[string]int64 {
	if src == nil {
		return nil
	}
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
