package location

import "github.com/orderbuddy/orderbuddy/internal/domain"

type Level int

const (
	LevelDistrict Level = iota
	LevelTaluk
	LevelVillage
)

// ResetDependents returns sel with every level strictly below changed cleared.
// sel itself is not modified.
func ResetDependents(sel domain.Location, changed Level) domain.Location {
	switch changed {
	case LevelDistrict:
		sel.Taluk = ""
		sel.VillageCity = ""
	case LevelTaluk:
		sel.VillageCity = ""
	}
	return sel
}
