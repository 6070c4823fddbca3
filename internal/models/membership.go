package models

// MembershipData is the membership status of a member on a given day, derived from the
// member's non-deleted spans. End dates are the furthest known expiry and are nil when
// the member never had a span of that kind.
type MembershipData struct {
	HasLabAccess  bool  `json:"has_labaccess"`
	LabAccessEnd  *Date `json:"labaccess_end"`
	HasMembership bool  `json:"has_membership"`
	MembershipEnd *Date `json:"membership_end"`
}
