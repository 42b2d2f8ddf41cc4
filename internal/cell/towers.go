// Package cell scatters cell towers over weighted geographic zones.
package cell

import (
	"fmt"
	"math"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/sampling"
)

// Zone is a rectangular area with a placement weight.
type Zone struct {
	AreaType string
	Weight   float64
	LatMin   float64
	LatMax   float64
	LonMin   float64
	LonMax   float64
}

// DefaultZones covers the Delhi metropolitan region.
func DefaultZones() []Zone {
	return []Zone{
		{AreaType: "downtown", Weight: 0.30, LatMin: 28.61, LatMax: 28.68, LonMin: 77.20, LonMax: 77.25},
		{AreaType: "commercial", Weight: 0.25, LatMin: 28.55, LatMax: 28.65, LonMin: 77.15, LonMax: 77.30},
		{AreaType: "residential", Weight: 0.25, LatMin: 28.45, LatMax: 28.60, LonMin: 77.10, LonMax: 77.35},
		{AreaType: "suburban", Weight: 0.20, LatMin: 28.40, LatMax: 28.50, LonMin: 76.90, LonMax: 77.40},
	}
}

// macro towers outnumber small cells three to one
var towerTypes = []string{"macro", "macro", "macro", "small_cell"}

// Generate places n towers across the zones.
func Generate(n int, zones []Zone, s *sampling.Sampler) []domain.CellTower {
	if len(zones) == 0 {
		zones = DefaultZones()
	}
	weights := make([]float64, len(zones))
	for i, z := range zones {
		weights[i] = z.Weight
	}

	towers := make([]domain.CellTower, n)
	for i := range towers {
		z := zones[s.Categorical(weights)]
		towers[i] = domain.CellTower{
			ID:        fmt.Sprintf("cell_%03d", i),
			Latitude:  round6(s.Uniform(z.LatMin, z.LatMax)),
			Longitude: round6(s.Uniform(z.LonMin, z.LonMax)),
			AreaType:  z.AreaType,
			TowerType: towerTypes[s.Intn(len(towerTypes))],
		}
	}
	return towers
}

// AssignHomeCells picks a home tower uniformly for every user.
func AssignHomeCells(users []string, towers []domain.CellTower, s *sampling.Sampler) map[string]string {
	home := make(map[string]string, len(users))
	for _, u := range users {
		home[u] = towers[s.Intn(len(towers))].ID
	}
	return home
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
