// Package reward decides what a completed mining cycle yields.
package reward

import (
	"idle-miner-sync/internal/models"
	"math"
)

// Profile is a weighted distribution over ore kinds. Order matters: it
// decides bucket boundaries and the fallback kind.
type Profile []models.OreWeight

// Source is the random source a Resolver draws from. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Choose maps a uniform draw in [0,1) onto the profile's cumulative weights.
// The first bucket whose cumulative weight reaches the scaled draw wins; if
// rounding leaves no bucket matched, the last-listed kind is returned.
// An empty profile yields "".
func Choose(profile Profile, draw float64) string {
	if len(profile) == 0 {
		return ""
	}

	total := 0.0
	for _, w := range profile {
		if w.Weight > 0 {
			total += w.Weight
		}
	}
	if total <= 0 {
		return profile[len(profile)-1].Kind
	}

	target := draw * total
	cumulative := 0.0
	for _, w := range profile {
		if w.Weight <= 0 {
			continue
		}
		cumulative += w.Weight
		if cumulative >= target {
			return w.Kind
		}
	}
	return profile[len(profile)-1].Kind
}

// Amount is roll * oreQuality * pickaxeLevel with every factor floored at 1.
func Amount(mods models.ModifierSet, roll int64) int64 {
	if roll < 1 {
		roll = 1
	}
	quality := atLeastOne(mods.Level(models.UpgradeOreQuality))
	power := atLeastOne(mods.Level(models.UpgradePickaxeLevel))
	return roll * quality * power
}

func atLeastOne(level int) int64 {
	if level < 1 {
		return 1
	}
	return int64(level)
}

// Resolver turns a completed cycle into a Reward.
type Resolver struct {
	source Source
}

// NewResolver creates a Resolver drawing from source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve draws an ore kind from profile and a base roll of 1 or 2, then
// scales the roll by the modifiers. Two draws are consumed per call.
func (r *Resolver) Resolve(profile Profile, mods models.ModifierSet) models.Reward {
	kind := Choose(profile, r.draw())
	roll := int64(math.Floor(r.draw()*2)) + 1
	if roll > 2 {
		roll = 2
	}
	return models.Reward{Kind: kind, Amount: Amount(mods, roll)}
}

// Kind draws only an ore kind from profile. Worker output uses it.
func (r *Resolver) Kind(profile Profile) string {
	return Choose(profile, r.draw())
}

func (r *Resolver) draw() float64 {
	d := r.source.Float64()
	if d < 0 || math.IsNaN(d) {
		return 0
	}
	if d >= 1 {
		return math.Nextafter(1, 0)
	}
	return d
}
