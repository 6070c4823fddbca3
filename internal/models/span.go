package models

import "time"

// SpanType is the kind of benefit a span grants.
type SpanType string

// Span types.
const (
	LabAccess        SpanType = "labaccess"
	SpecialLabAccess SpanType = "special_labaccess"
	Membership       SpanType = "membership"
)

var (
	// LabAccessTypes are the span types that give access to the lab.
	LabAccessTypes = []SpanType{LabAccess, SpecialLabAccess}
	// MembershipTypes are the span types that make someone a member of the association.
	MembershipTypes = []SpanType{Membership}
)

// Valid reports whether t is one of the known span types.
func (t SpanType) Valid() bool {
	switch t {
	case LabAccess, SpecialLabAccess, Membership:
		return true
	}
	return false
}

// Span is an inclusive date interval during which a member holds a benefit.
// Spans are never modified after creation except for soft deletion.
type Span struct {
	ID             int        `json:"span_id"`
	MemberID       int        `json:"member_id"`
	Type           SpanType   `json:"type"`
	StartDate      Date       `json:"startdate"`
	EndDate        Date       `json:"enddate"`
	CreationReason string     `json:"creation_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Days is the length of the span as granted, enddate minus startdate.
func (s Span) Days() int {
	return s.EndDate.DaysSince(s.StartDate)
}

// Contains reports whether day falls inside the span.
func (s Span) Contains(day Date) bool {
	return !day.Before(s.StartDate) && !day.After(s.EndDate)
}

// AddDaysRequest grants days of a span type to a member.
// CreationReason is the idempotency key of the grant; DefaultStartDate defaults to today.
type AddDaysRequest struct {
	MemberID         int      `json:"-"`
	Type             SpanType `json:"type"`
	Days             int      `json:"days"`
	CreationReason   string   `json:"creation_reason"`
	DefaultStartDate *Date    `json:"default_start_date,omitempty"`
}

// Period is a run of connected spans of one type.
type Period struct {
	Type  SpanType `json:"type"`
	Start Date     `json:"start"`
	End   Date     `json:"end"`
}
