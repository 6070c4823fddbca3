package models

import (
	"errors"
	"fmt"
)

// Values of UnprocessableEntity.What.
const (
	NotUnique = "not_unique"
	Invalid   = "invalid"
)

var (
	// ErrNotFound is wrapped by every lookup that finds no matching row.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned for failed logins.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransactionNotPending is returned when completing a transaction that is already
	// completed or failed.
	ErrTransactionNotPending = errors.New("transaction is not pending")
)

// UnprocessableEntity reports a request that is well formed but conflicts with stored data
// or breaks a field rule. Fields names the offending request field.
type UnprocessableEntity struct {
	Message string
	What    string
	Fields  string
}

func (e *UnprocessableEntity) Error() string {
	if e.Fields == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s: %s)", e.Message, e.What, e.Fields)
}

// NewNotUnique returns the conflict error for a duplicated unique field.
func NewNotUnique(field string) *UnprocessableEntity {
	return &UnprocessableEntity{Message: "Duplicate entry.", What: NotUnique, Fields: field}
}

// BadRequest is a request rejected by business rules before anything was stored.
type BadRequest struct {
	Message string
}

func (e *BadRequest) Error() string {
	return e.Message
}
