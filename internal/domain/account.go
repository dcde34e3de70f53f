package domain

import "time"

// ============================================================
// Users, profiles and addresses
// ============================================================

// Roles stored on users.role.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Profile is a row of the users table.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// UpdateProfileRequest is the body of PUT /api/profile.
type UpdateProfileRequest struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,ngphone"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

// Address is a row of user_addresses.
type Address struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	FullName     string    `json:"full_name"`
	Phone        string    `json:"phone"`
	AddressLine1 string    `json:"address_line1"`
	AddressLine2 string    `json:"address_line2,omitempty"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	PostalCode   string    `json:"postal_code,omitempty"`
	Country      string    `json:"country"`
	IsDefault    bool      `json:"is_default"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot copies the address into the shape stored on orders.
func (a *Address) Snapshot() *ShippingAddress {
	return &ShippingAddress{
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
	}
}

// AddressRequest is the body of POST/PUT /api/addresses.
type AddressRequest struct {
	FullName     string `json:"full_name" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,ngphone"`
	AddressLine1 string `json:"address_line1" validate:"required,max=200"`
	AddressLine2 string `json:"address_line2" validate:"max=200"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,max=100"`
	PostalCode   string `json:"postal_code" validate:"max=20"`
	Country      string `json:"country" validate:"max=60"`
	IsDefault    bool   `json:"is_default"`
}

// ToAddress builds an Address for userID from the request.
func (r *AddressRequest) ToAddress(userID string) *Address {
	country := r.Country
	if country == "" {
		country = "Nigeria"
	}
	return &Address{
		UserID:       userID,
		FullName:     r.FullName,
		Phone:        r.Phone,
		AddressLine1: r.AddressLine1,
		AddressLine2: r.AddressLine2,
		City:         r.City,
		State:        r.State,
		PostalCode:   r.PostalCode,
		Country:      country,
		IsDefault:    r.IsDefault,
	}
}
