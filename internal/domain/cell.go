package domain

// CellTower is static reference data for the radio network.
type CellTower struct {
	ID        string
	Latitude  float64
	Longitude float64
	AreaType  string
	TowerType string
}
