package accesssync

import (
	"fmt"
	"sort"
	"strings"

	"github.com/makerspace/makeradmin/internal/models"
)

// UpdateUser changes card, stop date or blocked state of an existing user to match
// MakerAdmin.
type UpdateUser struct {
	User   User
	Member models.AccessMember
	Change string
}

// AddUser creates a missing user for a member with access.
type AddUser struct {
	Member models.AccessMember
}

// BlockUser blocks a user that should no longer get in.
type BlockUser struct {
	User   User
	Reason string
}

// Diff is what has to change in the access database.
type Diff struct {
	Updates []UpdateUser
	Adds    []AddUser
	Blocks  []BlockUser
}

// Empty reports whether nothing has to change.
func (d Diff) Empty() bool {
	return len(d.Updates) == 0 && len(d.Adds) == 0 && len(d.Blocks) == 0
}

// ComputeDiff compares the MakerAdmin members with the users of the access database on
// day today. Users are matched on member number.
//
// A member is active when it has a key and its lab access ends on or after today. Users of
// members that are gone or no longer active are blocked; users that disagree on card or
// stop date are updated; active members without a user are added.
func ComputeDiff(members []models.AccessMember, users []User, today models.Date) Diff {
	byNumber := make(map[int]models.AccessMember, len(members))
	for _, m := range members {
		byNumber[m.MemberNumber] = m
	}

	var d Diff
	seen := make(map[int]bool, len(users))
	for _, u := range users {
		seen[u.MemberNumber] = true
		m, ok := byNumber[u.MemberNumber]
		if !ok {
			if !u.Blocked {
				d.Blocks = append(d.Blocks, BlockUser{User: u, Reason: "not in MakerAdmin"})
			}
			continue
		}
		active := isActive(m, today)
		if !active && !u.Blocked {
			d.Blocks = append(d.Blocks, BlockUser{User: u, Reason: "lab access expired"})
			continue
		}
		if change := userChange(u, m, active); change != "" {
			d.Updates = append(d.Updates, UpdateUser{User: u, Member: m, Change: change})
		}
	}

	for _, m := range members {
		if !seen[m.MemberNumber] && isActive(m, today) {
			d.Adds = append(d.Adds, AddUser{Member: m})
		}
	}
	sort.Slice(d.Adds, func(i, j int) bool { return d.Adds[i].Member.MemberNumber < d.Adds[j].Member.MemberNumber })
	return d
}

func isActive(m models.AccessMember, today models.Date) bool {
	return len(m.Keys) > 0 && m.EndDate != nil && !m.EndDate.Before(today)
}

// userChange describes how u differs from m, or returns "" when they agree. Blocked users
// stay blocked until the member is active again.
func userChange(u User, m models.AccessMember, active bool) string {
	var changes []string
	if card := cardOf(m); card != "" && card != u.Card {
		changes = append(changes, fmt.Sprintf("card %q -> %q", u.Card, card))
	}
	if !sameDate(u.StopDate, m.EndDate) {
		changes = append(changes, fmt.Sprintf("stop %s -> %s", formatDate(u.StopDate), formatDate(m.EndDate)))
	}
	if u.Blocked && active {
		changes = append(changes, "unblock")
	}
	return strings.Join(changes, ", ")
}

// cardOf returns the member's first key, which is the one programmed into the door system.
func cardOf(m models.AccessMember) string {
	if len(m.Keys) == 0 {
		return ""
	}
	return m.Keys[0].TagID
}

func sameDate(a, b *models.Date) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func formatDate(d *models.Date) string {
	if d == nil {
		return "none"
	}
	return d.String()
}

func fullName(m models.AccessMember) string {
	return strings.TrimSpace(m.Firstname + " " + m.Lastname)
}
