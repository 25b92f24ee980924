package location

import (
	"testing"

	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Lookup(t *testing.T) {
	h := Default()

	assert.Equal(t, []string{"Chennai", "Coimbatore", "Madurai"}, h.Districts())
	assert.Equal(t, []string{"Chennai Central", "Chennai North", "Chennai South"}, h.Taluks("Chennai"))
	assert.Equal(t, []string{"Guindy", "Adyar", "Velachery", "Sholinganallur"}, h.Villages("Chennai", "Chennai South"))
	assert.Nil(t, h.Taluks("Salem"))
	assert.Nil(t, h.Villages("Chennai", "Pollachi"))
}

func TestValidate(t *testing.T) {
	h := Default()

	tests := []struct {
		name    string
		loc     domain.Location
		wantErr bool
	}{
		{"valid", domain.Location{District: "Madurai", Taluk: "Melur", VillageCity: "Vadipatti"}, false},
		{"missing village", domain.Location{District: "Madurai", Taluk: "Melur"}, true},
		{"unknown district", domain.Location{District: "Salem", Taluk: "Melur", VillageCity: "Vadipatti"}, true},
		{"taluk from other district", domain.Location{District: "Chennai", Taluk: "Melur", VillageCity: "Vadipatti"}, true},
		{"village from other taluk", domain.Location{District: "Chennai", Taluk: "Chennai North", VillageCity: "Adyar"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Validate(tt.loc)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePartial(t *testing.T) {
	h := Default()

	assert.NoError(t, h.ValidatePartial(domain.Location{}))
	assert.NoError(t, h.ValidatePartial(domain.Location{District: "Coimbatore"}))
	assert.NoError(t, h.ValidatePartial(domain.Location{District: "Coimbatore", Taluk: "Pollachi"}))
	assert.ErrorIs(t, h.ValidatePartial(domain.Location{Taluk: "Pollachi"}), domain.ErrValidation)
	assert.ErrorIs(t, h.ValidatePartial(domain.Location{District: "Coimbatore", VillageCity: "Sulur"}), domain.ErrValidation)
}

func TestMap_IsACopy(t *testing.T) {
	h := Default()

	m := h.Map()
	require.Contains(t, m, "Chennai")
	m["Chennai"].Taluks["Chennai South"][0] = "changed"
	delete(m, "Madurai")

	assert.Equal(t, "Guindy", h.Villages("Chennai", "Chennai South")[0])
	assert.Len(t, h.Districts(), 3)
}

func TestNew_CopiesInput(t *testing.T) {
	data := map[string]Taluks{"D": {"T": {"V"}}}
	h := New(data)
	data["D"]["T"][0] = "X"

	assert.NoError(t, h.Validate(domain.Location{District: "D", Taluk: "T", VillageCity: "V"}))
}

func TestResetDependents(t *testing.T) {
	sel := domain.Location{District: "Chennai", Taluk: "Chennai South", VillageCity: "Adyar"}

	assert.Equal(t, domain.Location{District: "Chennai"}, ResetDependents(sel, LevelDistrict))
	assert.Equal(t, domain.Location{District: "Chennai", Taluk: "Chennai South"}, ResetDependents(sel, LevelTaluk))
	assert.Equal(t, sel, ResetDependents(sel, LevelVillage))
	assert.Equal(t, "Adyar", sel.VillageCity)
}
