package accesssync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/makerspace/makeradmin/internal/models"
)

type ClientMock struct {
	mock.Mock
}

func (m *ClientMock) IsLoggedIn() bool {
	return m.Called().Bool(0)
}

func (m *ClientMock) Login(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *ClientMock) ShipOrders(ctx context.Context, ui UI) error {
	return m.Called(ctx, ui).Error(0)
}

func (m *ClientMock) FetchMembers(ctx context.Context, ui UI) ([]models.AccessMember, error) {
	args := m.Called(ctx, ui)
	members, _ := args.Get(0).([]models.AccessMember)
	return members, args.Error(1)
}

func newTestSyncer(client Client, store AccessStore, ui UI) *Syncer {
	s := NewSyncer(client, store, ui, Config{CustomerID: 1, AuthorityID: 9, LoginRetries: 2},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.today = func() models.Date { return models.NewDate(2026, 10, 15) }
	s.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return s
}

func TestParseWhat(t *testing.T) {
	what, err := ParseWhat("orders,update,add,block")
	require.NoError(t, err)
	assert.Len(t, what, 4)

	what, err = ParseWhat(" add ,block")
	require.NoError(t, err)
	assert.Equal(t, What{WhatAdd: true, WhatBlock: true}, what)

	_, err = ParseWhat("add,delete")
	assert.ErrorContains(t, err, `unknown argument "delete"`)

	_, err = ParseWhat("")
	assert.Error(t, err)
}

func TestSyncerRun_AppliesConfirmedKinds(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	stale := models.NewDate(2026, 10, 31)
	_, err := store.AddUser(ctx, User{CustomerID: 1, MemberNumber: 1, Name: "Anna", Card: "aa", StopDate: &stale}, 9)
	require.NoError(t, err)
	_, err = store.AddUser(ctx, User{CustomerID: 1, MemberNumber: 99, Name: "Gone"}, 9)
	require.NoError(t, err)

	client := new(ClientMock)
	client.On("IsLoggedIn").Return(true)
	client.On("ShipOrders", mock.Anything, mock.Anything).Return(nil).Once()
	client.On("FetchMembers", mock.Anything, mock.Anything).Return([]models.AccessMember{
		member(1, date(2026, 12, 31), "aa"),
		member(2, date(2026, 11, 30), "bb"),
	}, nil)

	// update: yes, add: yes, block: no
	ui := &scriptedUI{answers: []bool{true, true, false}}
	require.NoError(t, newTestSyncer(client, store, ui).Run(ctx, What{
		WhatOrders: true, WhatUpdate: true, WhatAdd: true, WhatBlock: true,
	}))

	users, err := store.Users(ctx, 1)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "2026-12-31", users[0].StopDate.String())
	assert.Equal(t, 2, users[1].MemberNumber)
	assert.Equal(t, "bb", users[1].Card)
	assert.Equal(t, 99, users[2].MemberNumber)
	assert.False(t, users[2].Blocked)
	assert.Contains(t, ui.shown, "skipped")
	client.AssertExpectations(t)
}

func TestSyncerRun_OnlySelectedKinds(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.AddUser(ctx, User{CustomerID: 1, MemberNumber: 99, Name: "Gone"}, 9)
	require.NoError(t, err)

	client := new(ClientMock)
	client.On("IsLoggedIn").Return(true)
	client.On("FetchMembers", mock.Anything, mock.Anything).
		Return([]models.AccessMember{member(2, date(2026, 11, 30), "bb")}, nil)

	ui := &scriptedUI{answers: []bool{true}}
	require.NoError(t, newTestSyncer(client, store, ui).Run(ctx, What{WhatBlock: true}))

	users, err := store.Users(ctx, 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].Blocked)
	client.AssertNotCalled(t, "ShipOrders", mock.Anything, mock.Anything)
}

func TestSyncerRun_LoginRetries(t *testing.T) {
	store := newTestStore(t)
	client := new(ClientMock)
	client.On("IsLoggedIn").Return(false)
	client.On("Login", mock.Anything).Return(models.ErrUnauthorized).Twice()
	client.On("Login", mock.Anything).Return(nil).Once()
	client.On("FetchMembers", mock.Anything, mock.Anything).Return([]models.AccessMember{}, nil)

	ui := &scriptedUI{}
	require.NoError(t, newTestSyncer(client, store, ui).Run(context.Background(), What{WhatAdd: true}))
	client.AssertNumberOfCalls(t, "Login", 3)
	assert.Contains(t, ui.shown, "access database is up to date")
}

func TestSyncerRun_LoginGivesUp(t *testing.T) {
	client := new(ClientMock)
	client.On("IsLoggedIn").Return(false)
	client.On("Login", mock.Anything).Return(models.ErrUnauthorized)

	err := newTestSyncer(client, newTestStore(t), &scriptedUI{}).Run(context.Background(), What{WhatAdd: true})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	client.AssertNumberOfCalls(t, "Login", 3)
	client.AssertNotCalled(t, "FetchMembers", mock.Anything, mock.Anything)
}

func TestSyncerRun_LoginStopsOnEndOfInput(t *testing.T) {
	client := new(ClientMock)
	client.On("IsLoggedIn").Return(false)
	client.On("Login", mock.Anything).Return(io.EOF)

	err := newTestSyncer(client, newTestStore(t), &scriptedUI{}).Run(context.Background(), What{WhatAdd: true})
	assert.ErrorIs(t, err, io.EOF)
	client.AssertNumberOfCalls(t, "Login", 1)
}

func TestSyncerRun_FetchFailure(t *testing.T) {
	client := new(ClientMock)
	client.On("IsLoggedIn").Return(true)
	client.On("FetchMembers", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	err := newTestSyncer(client, newTestStore(t), &scriptedUI{}).Run(context.Background(), What{WhatAdd: true})
	assert.ErrorContains(t, err, "connection refused")
}
