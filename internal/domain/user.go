package domain

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleCustomer       Role = "customer"
	RoleShopOwner      Role = "shop_owner"
	RoleDeliveryPerson Role = "delivery_person"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleShopOwner, RoleDeliveryPerson:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Location is the (district, taluk, village_city) triple. Empty members act as
// wildcards when a Location is used as a filter.
type Location struct {
	District    string `json:"district"`
	Taluk       string `json:"taluk"`
	VillageCity string `json:"village_city"`
}

// String formats the triple the way delivery addresses are printed.
func (l Location) String() string {
	return fmt.Sprintf("%s, %s, %s", l.VillageCity, l.Taluk, l.District)
}

// Matches reports whether l satisfies the filter f on every level f sets.
func (l Location) Matches(f Location) bool {
	if f.District != "" && f.District != l.District {
		return false
	}
	if f.Taluk != "" && f.Taluk != l.Taluk {
		return false
	}
	if f.VillageCity != "" && f.VillageCity != l.VillageCity {
		return false
	}
	return true
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"user_type"`
	Location               // district, taluk, village_city
	IsActive     bool      `json:"is_active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the authenticated caller of a request. It is created on login or
// register, resolved from the bearer token on every call and torn down on logout.
type Session struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
