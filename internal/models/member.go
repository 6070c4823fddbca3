// Package models contains the domain types shared by the storage, service and HTTP layers:
// members and their keys, access spans and the membership summary derived from them,
// and the webshop catalog and transactions.
package models

import "time"

// Roles of a member account.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Member is a registered member of the makerspace.
type Member struct {
	ID             int        `json:"member_id"`
	MemberNumber   int        `json:"member_number"`
	Email          string     `json:"email"`
	Firstname      string     `json:"firstname"`
	Lastname       string     `json:"lastname"`
	Phone          string     `json:"phone,omitempty"`
	AddressStreet  string     `json:"address_street,omitempty"`
	AddressZipcode string     `json:"address_zipcode,omitempty"`
	AddressCity    string     `json:"address_city,omitempty"`
	PasswordHash   string     `json:"-"`
	Role           string     `json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// CreateMemberRequest is the payload for creating a member.
type CreateMemberRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Firstname      string `json:"firstname" validate:"required"`
	Lastname       string `json:"lastname"`
	Phone          string `json:"phone"`
	AddressStreet  string `json:"address_street"`
	AddressZipcode string `json:"address_zipcode"`
	AddressCity    string `json:"address_city"`
	Password       string `json:"password" validate:"omitempty,min=8"`
}

// LoginRequest carries member credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Key is an RFID tag handed out to a member.
type Key struct {
	ID          int        `json:"key_id"`
	MemberID    int        `json:"member_id"`
	TagID       string     `json:"tagid"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// CreateKeyRequest is the payload for adding a key to a member.
type CreateKeyRequest struct {
	TagID       string `json:"tagid" validate:"required,alphanum"`
	Description string `json:"description"`
}

// AccessMember is the view of a member exported to the access-control sync.
type AccessMember struct {
	MemberID     int         `json:"member_id"`
	MemberNumber int         `json:"member_number"`
	Firstname    string      `json:"firstname"`
	Lastname     string      `json:"lastname"`
	EndDate      *Date       `json:"end_date"`
	Keys         []AccessKey `json:"keys"`
}

// AccessKey is a key tag in the access-control sync view.
type AccessKey struct {
	TagID string `json:"tagid"`
}
