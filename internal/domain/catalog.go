package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category types used by the menu filters.
const (
	CategoryFood  = "food"
	CategoryDrink = "drink"
)

// MenuItem is a food or drink offered by the café.
type MenuItem struct {
	ID              ID              `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	DescriptionHTML string          `json:"description_html,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Image           string          `json:"image,omitempty"`
	Category        ID              `json:"category,omitempty"`
	CategoryType    string          `json:"category_type,omitempty"`
	IsAvailable     bool            `json:"is_available"`
	PreparationTime int             `json:"preparation_time,omitempty"`
}

// Category groups menu items.
type Category struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	CategoryType string `json:"category_type,omitempty"`
	Description  string `json:"description,omitempty"`
}

// User is the profile returned by the auth endpoints.
type User struct {
	ID          ID         `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	PhoneNumber string     `json:"phone_number,omitempty"`
	Address     string     `json:"address,omitempty"`
	IsCafeStaff bool       `json:"is_cafe_staff"`
	IsCustomer  bool       `json:"is_customer"`
	IsStaff     bool       `json:"is_staff,omitempty"`
	IsSuperuser bool       `json:"is_superuser,omitempty"`
	IsActive    bool       `json:"is_active"`
	DateJoined  *time.Time `json:"date_joined,omitempty"`
}

// IsStaffMember reports whether the user may open the admin console.
func (u User) IsStaffMember() bool {
	return u.IsCafeStaff || u.IsStaff || u.IsSuperuser
}

// Address is a saved delivery address.
type Address struct {
	ID          ID                  `json:"id,omitempty"`
	Label       string              `json:"label,omitempty"`
	FullAddress string              `json:"full_address"`
	Latitude    decimal.NullDecimal `json:"latitude"`
	Longitude   decimal.NullDecimal `json:"longitude"`
	IsDefault   bool                `json:"is_default"`
}
