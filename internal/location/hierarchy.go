// Package location holds the read-only district -> taluk -> village_city lookup.
package location

import (
	"sort"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

// Taluks maps a taluk to its villages and cities.
type Taluks map[string][]string

// District is the JSON shape of one district in the locations listing.
type District struct {
	Taluks Taluks `json:"taluks"`
}

type Hierarchy struct {
	districts map[string]Taluks
}

// New builds a Hierarchy from a deep copy of data.
func New(data map[string]Taluks) *Hierarchy {
	h := &Hierarchy{districts: make(map[string]Taluks, len(data))}
	for d, taluks := range data {
		h.districts[d] = copyTaluks(taluks)
	}
	return h
}

// Default returns the hierarchy the service ships with.
func Default() *Hierarchy {
	return New(map[string]Taluks{
		"Chennai": {
			"Chennai North":   {"Washermanpet", "Royapuram", "Tondiarpet", "Madhavaram"},
			"Chennai Central": {"Egmore", "Purasawalkam", "Kilpauk", "Anna Nagar"},
			"Chennai South":   {"Guindy", "Adyar", "Velachery", "Sholinganallur"},
		},
		"Coimbatore": {
			"Coimbatore North": {"RS Puram", "Gandhipuram", "Peelamedu", "Saravanampatti"},
			"Coimbatore South": {"Singanallur", "Podanur", "Sulur", "Madukkarai"},
			"Pollachi":         {"Pollachi", "Valparai", "Udumalaipettai", "Kinathukadavu"},
		},
		"Madurai": {
			"Madurai East": {"Thiruparankundram", "Koodal Nagar", "Anna Nagar", "Goripalayam"},
			"Madurai West": {"West Masi Street", "Periyar", "Vilangudi", "Tiruppalai"},
			"Melur":        {"Melur", "Vadipatti", "Thirumangalam", "Usilampatti"},
		},
	})
}

func (h *Hierarchy) Districts() []string {
	out := make([]string, 0, len(h.districts))
	for d := range h.districts {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Taluks returns the taluks of district in sorted order, nil if it is unknown.
func (h *Hierarchy) Taluks(district string) []string {
	taluks, ok := h.districts[district]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(taluks))
	for t := range taluks {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Villages keeps the listing order of the source data.
func (h *Hierarchy) Villages(district, taluk string) []string {
	villages, ok := h.districts[district][taluk]
	if !ok {
		return nil
	}
	return append([]string(nil), villages...)
}

// Validate requires a complete triple whose members exist and nest correctly.
func (h *Hierarchy) Validate(loc domain.Location) error {
	if loc.District == "" || loc.Taluk == "" || loc.VillageCity == "" {
		return domain.Validationf("district, taluk and village_city are required")
	}
	return h.ValidatePartial(loc)
}

// ValidatePartial validates a filter where trailing levels may be empty. A
// level may only be set if its parent is.
func (h *Hierarchy) ValidatePartial(loc domain.Location) error {
	if loc.District == "" {
		if loc.Taluk != "" || loc.VillageCity != "" {
			return domain.Validationf("taluk and village_city require a district")
		}
		return nil
	}
	taluks, ok := h.districts[loc.District]
	if !ok {
		return domain.Validationf("unknown district %q", loc.District)
	}
	if loc.Taluk == "" {
		if loc.VillageCity != "" {
			return domain.Validationf("village_city requires a taluk")
		}
		return nil
	}
	villages, ok := taluks[loc.Taluk]
	if !ok {
		return domain.Validationf("unknown taluk %q in %s", loc.Taluk, loc.District)
	}
	if loc.VillageCity == "" {
		return nil
	}
	for _, v := range villages {
		if v == loc.VillageCity {
			return nil
		}
	}
	return domain.Validationf("unknown village_city %q in %s", loc.VillageCity, loc.Taluk)
}

// Map returns a copy of the hierarchy in the listing shape.
func (h *Hierarchy) Map() map[string]District {
	out := make(map[string]District, len(h.districts))
	for d, taluks := range h.districts {
		out[d] = District{Taluks: copyTaluks(taluks)}
	}
	return out
}

func copyTaluks(in Taluks) Taluks {
	out := make(Taluks, len(in))
	for t, villages := range in {
		out[t] = append([]string(nil), villages...)
	}
	return out
}
