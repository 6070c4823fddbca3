package accesssync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerspace/makeradmin/internal/models"
)

func date(y, m, d int) *models.Date {
	v := models.NewDate(y, time.Month(m), d)
	return &v
}

func member(number int, end *models.Date, tags ...string) models.AccessMember {
	m := models.AccessMember{MemberNumber: number, Firstname: "M", Lastname: "Ember", EndDate: end}
	for _, tag := range tags {
		m.Keys = append(m.Keys, models.AccessKey{TagID: tag})
	}
	return m
}

func TestComputeDiff(t *testing.T) {
	today := models.NewDate(2026, 10, 15)

	members := []models.AccessMember{
		member(1, date(2026, 12, 31), "aa"),  // in sync
		member(2, date(2027, 1, 31), "bb"),   // stop date moved
		member(3, date(2026, 12, 31), "new"), // card changed
		member(4, date(2026, 12, 31), "dd"),  // missing, active
		member(5, date(2026, 10, 1), "ee"),   // missing, expired
		member(6, date(2026, 12, 31)),        // missing, no key
		member(7, date(2026, 9, 30), "gg"),   // expired user
		member(8, date(2026, 11, 1), "hh"),   // blocked but active again
		member(9, date(2026, 10, 15), "ii"),  // missing, ends today
	}
	users := []User{
		{ID: 11, MemberNumber: 1, Card: "aa", StopDate: date(2026, 12, 31)},
		{ID: 12, MemberNumber: 2, Card: "bb", StopDate: date(2026, 12, 31)},
		{ID: 13, MemberNumber: 3, Card: "old", StopDate: date(2026, 12, 31)},
		{ID: 17, MemberNumber: 7, Card: "gg", StopDate: date(2026, 9, 30)},
		{ID: 18, MemberNumber: 8, Card: "hh", StopDate: date(2026, 11, 1), Blocked: true},
		{ID: 20, MemberNumber: 20, Card: "zz"},
		{ID: 21, MemberNumber: 21, Card: "yy", Blocked: true},
	}

	d := ComputeDiff(members, users, today)

	require.Len(t, d.Updates, 3)
	assert.Equal(t, 2, d.Updates[0].Member.MemberNumber)
	assert.Equal(t, "stop 2026-12-31 -> 2027-01-31", d.Updates[0].Change)
	assert.Equal(t, 3, d.Updates[1].Member.MemberNumber)
	assert.Equal(t, `card "old" -> "new"`, d.Updates[1].Change)
	assert.Equal(t, 8, d.Updates[2].Member.MemberNumber)
	assert.Equal(t, "unblock", d.Updates[2].Change)

	require.Len(t, d.Adds, 2)
	assert.Equal(t, 4, d.Adds[0].Member.MemberNumber)
	assert.Equal(t, 9, d.Adds[1].Member.MemberNumber)

	require.Len(t, d.Blocks, 2)
	assert.Equal(t, int64(17), d.Blocks[0].User.ID)
	assert.Equal(t, "lab access expired", d.Blocks[0].Reason)
	assert.Equal(t, int64(20), d.Blocks[1].User.ID)
	assert.Equal(t, "not in MakerAdmin", d.Blocks[1].Reason)
}

func TestComputeDiffEmpty(t *testing.T) {
	today := models.NewDate(2026, 10, 15)
	members := []models.AccessMember{member(1, date(2026, 12, 31), "aa")}
	users := []User{{ID: 1, MemberNumber: 1, Card: "aa", StopDate: date(2026, 12, 31)}}

	assert.True(t, ComputeDiff(members, users, today).Empty())
	assert.True(t, ComputeDiff(nil, nil, today).Empty())
}
