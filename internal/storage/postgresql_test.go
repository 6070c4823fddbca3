package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/makerspace/makeradmin/internal/migrations"
	"github.com/makerspace/makeradmin/internal/models"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	migrationsPath, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(s.DB, migrationsPath))
	require.NoError(t, CheckDatabaseReady(ctx, s))

	return s
}

func createMember(t *testing.T, s *Storage, email string) models.Member {
	t.Helper()
	m, err := s.CreateMember(context.Background(), models.Member{
		Email:     email,
		Firstname: "Test",
		Lastname:  "Member",
	})
	require.NoError(t, err)
	return m
}

func insertSpan(t *testing.T, s *Storage, memberID int, typ models.SpanType, start, end models.Date, reason string) models.Span {
	t.Helper()
	sp, inserted, err := s.InsertSpan(context.Background(), models.Span{
		MemberID: memberID, Type: typ, StartDate: start, EndDate: end, CreationReason: reason,
	})
	require.NoError(t, err)
	require.True(t, inserted)
	return sp
}

func TestStorage_Members(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	first := createMember(t, s, "alice@example.com")
	second := createMember(t, s, "bob@example.com")
	assert.Equal(t, 1000, first.MemberNumber)
	assert.Equal(t, first.MemberNumber+1, second.MemberNumber)
	assert.Equal(t, models.RoleMember, first.Role)

	_, err := s.CreateMember(ctx, models.Member{Email: "ALICE@example.com", Firstname: "Dup"})
	var conflict *models.UnprocessableEntity
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.NotUnique, conflict.What)
	assert.Equal(t, "email", conflict.Fields)

	got, err := s.GetMemberByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	list, err := s.ListMembers(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.DeleteMember(ctx, first.ID))
	_, err = s.GetMember(ctx, first.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, s.DeleteMember(ctx, first.ID), models.ErrNotFound)

	// The email of a deleted member can be reused.
	_, err = s.CreateMember(ctx, models.Member{Email: "alice@example.com", Firstname: "Again"})
	assert.NoError(t, err)
}

func TestStorage_Keys(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	m := createMember(t, s, "keys@example.com")

	k, err := s.CreateKey(ctx, models.Key{MemberID: m.ID, TagID: "12345678"})
	require.NoError(t, err)

	_, err = s.CreateKey(ctx, models.Key{MemberID: m.ID, TagID: "12345678"})
	var conflict *models.UnprocessableEntity
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "tagid", conflict.Fields)

	keys, err := s.ListKeys(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	require.NoError(t, s.DeleteKey(ctx, k.ID))
	keys, err = s.ListKeys(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStorage_MembershipSummary(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	m := createMember(t, s, "summary@example.com")

	today := models.NewDate(2024, time.June, 15)

	data, err := s.MembershipSummary(ctx, m.ID, today)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipData{}, data)

	insertSpan(t, s, m.ID, models.Membership, today.AddDays(-10), today.AddDays(20), "")
	insertSpan(t, s, m.ID, models.SpecialLabAccess, today.AddDays(-30), today.AddDays(-1), "")
	insertSpan(t, s, m.ID, models.LabAccess, today.AddDays(5), today.AddDays(35), "")

	data, err = s.MembershipSummary(ctx, m.ID, today)
	require.NoError(t, err)
	assert.True(t, data.HasMembership)
	require.NotNil(t, data.MembershipEnd)
	assert.Equal(t, today.AddDays(20), *data.MembershipEnd)
	assert.False(t, data.HasLabAccess)
	require.NotNil(t, data.LabAccessEnd)
	assert.Equal(t, today.AddDays(35), *data.LabAccessEnd)

	// Both ends of a span are inclusive.
	data, err = s.MembershipSummary(ctx, m.ID, today.AddDays(35))
	require.NoError(t, err)
	assert.True(t, data.HasLabAccess)
	assert.False(t, data.HasMembership)
}

func TestStorage_DeletedSpansAreIgnored(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	m := createMember(t, s, "deleted@example.com")
	today := models.NewDate(2024, time.June, 15)

	insertSpan(t, s, m.ID, models.LabAccess, today.AddDays(-40), today.AddDays(-10), "")
	insertSpan(t, s, m.ID, models.Membership, today.AddDays(-40), today.AddDays(-5), "")
	lab := insertSpan(t, s, m.ID, models.LabAccess, today.AddDays(-1), today.AddDays(100), "")
	membership := insertSpan(t, s, m.ID, models.Membership, today.AddDays(-1), today.AddDays(200), "")
	require.NoError(t, s.DeleteSpan(ctx, lab.ID))
	require.NoError(t, s.DeleteSpan(ctx, membership.ID))

	data, err := s.MembershipSummary(ctx, m.ID, today)
	require.NoError(t, err)
	assert.False(t, data.HasLabAccess)
	assert.False(t, data.HasMembership)
	require.NotNil(t, data.LabAccessEnd)
	assert.Equal(t, today.AddDays(-10), *data.LabAccessEnd)
	require.NotNil(t, data.MembershipEnd)
	assert.Equal(t, today.AddDays(-5), *data.MembershipEnd)

	end, err := s.MaxEndDate(ctx, m.ID, models.LabAccess)
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.Equal(t, today.AddDays(-10), *end)

	end, err = s.MaxEndDate(ctx, m.ID, models.Membership)
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.Equal(t, today.AddDays(-5), *end)

	assert.ErrorIs(t, s.DeleteSpan(ctx, lab.ID), models.ErrNotFound)
}

func TestStorage_InsertSpanCreationReason(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	m := createMember(t, s, "reason@example.com")
	start := models.NewDate(2024, time.January, 1)

	first := insertSpan(t, s, m.ID, models.LabAccess, start, start.AddDays(30), "order-17")

	_, inserted, err := s.InsertSpan(ctx, models.Span{
		MemberID: m.ID, Type: models.LabAccess, StartDate: start, EndDate: start.AddDays(30), CreationReason: "order-17",
	})
	require.NoError(t, err)
	assert.False(t, inserted)

	found, err := s.SpanByCreationReason(ctx, "order-17")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	end, err := s.MaxEndDate(ctx, m.ID, models.LabAccess)
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.Equal(t, start.AddDays(30), *end)

	none, err := s.MaxEndDate(ctx, m.ID, models.Membership)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, s.DeleteSpan(ctx, first.ID))
	found, err = s.SpanByCreationReason(ctx, "order-17")
	require.NoError(t, err)
	assert.Nil(t, found)

	insertSpan(t, s, m.ID, models.LabAccess, start, start.AddDays(10), "order-17")

	spans, err := s.ListSpans(ctx, m.ID, false)
	require.NoError(t, err)
	assert.Len(t, spans, 1)
	spans, err = s.ListSpans(ctx, m.ID, true)
	require.NoError(t, err)
	assert.Len(t, spans, 2)
}

func TestStorage_InTxRollsBack(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	m := createMember(t, s, "tx@example.com")
	start := models.NewDate(2024, time.January, 1)

	err := s.InTx(ctx, func(tx *Storage) error {
		require.NoError(t, tx.LockMember(ctx, m.ID))
		insertSpan(t, tx, m.ID, models.Membership, start, start.AddDays(1), "rollback")
		return models.ErrNotFound
	})
	assert.ErrorIs(t, err, models.ErrNotFound)

	spans, err := s.ListSpans(ctx, m.ID, true)
	require.NoError(t, err)
	assert.Empty(t, spans)

	err = s.InTx(ctx, func(tx *Storage) error { return tx.LockMember(ctx, 999999) })
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStorage_AccessMembers(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	withKey := createMember(t, s, "door@example.com")
	withoutAccess := createMember(t, s, "new@example.com")
	createMember(t, s, "nokey@example.com")

	_, err := s.CreateKey(ctx, models.Key{MemberID: withKey.ID, TagID: "aaa"})
	require.NoError(t, err)
	_, err = s.CreateKey(ctx, models.Key{MemberID: withKey.ID, TagID: "bbb"})
	require.NoError(t, err)
	_, err = s.CreateKey(ctx, models.Key{MemberID: withoutAccess.ID, TagID: "ccc"})
	require.NoError(t, err)

	start := models.NewDate(2024, time.March, 1)
	insertSpan(t, s, withKey.ID, models.LabAccess, start, start.AddDays(30), "")
	insertSpan(t, s, withKey.ID, models.Membership, start, start.AddDays(365), "")

	members, err := s.AccessMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, withKey.ID, members[0].MemberID)
	require.NotNil(t, members[0].EndDate)
	assert.Equal(t, start.AddDays(30), *members[0].EndDate)
	assert.Equal(t, []models.AccessKey{{TagID: "aaa"}, {TagID: "bbb"}}, members[0].Keys)

	assert.Equal(t, withoutAccess.ID, members[1].MemberID)
	assert.Nil(t, members[1].EndDate)
}

func TestStorage_ShopTransactionLifecycle(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	m := createMember(t, s, "shop@example.com")
	_, err := s.CreateKey(ctx, models.Key{MemberID: m.ID, TagID: "shopkey"})
	require.NoError(t, err)

	cat, err := s.CreateCategory(ctx, "Membership", 1)
	require.NoError(t, err)
	lab, err := s.CreateProduct(ctx, models.Product{
		CategoryID: cat.ID, Name: "Lab access", Unit: "month", Price: 30000, SmallestMultiple: 1,
		Actions: []models.ProductAction{{Action: models.AddLabAccessDays, Value: 30}},
	})
	require.NoError(t, err)
	membership, err := s.CreateProduct(ctx, models.Product{
		CategoryID: cat.ID, Name: "Base membership", Unit: "year", Price: 20000, SmallestMultiple: 1,
		Actions: []models.ProductAction{{Action: models.AddMembershipDays, Value: 365}},
	})
	require.NoError(t, err)

	categories, err := s.ProductCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Len(t, categories[0].Items, 2)

	memberships, err := s.MembershipProducts(ctx)
	require.NoError(t, err)
	require.Len(t, memberships, 1)
	assert.Equal(t, membership.ID, memberships[0].ID)

	tr, err := s.CreateTransaction(ctx, models.Transaction{
		MemberID: m.ID,
		Amount:   80000,
		Contents: []models.TransactionContent{
			{ProductID: lab.ID, Count: 2, Amount: 60000},
			{ProductID: membership.ID, Count: 1, Amount: 20000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, tr.Status)

	pending, err := s.PendingActions(ctx, 0, "", false)
	require.NoError(t, err)
	assert.Empty(t, pending, "actions of pending transactions are not listed")

	done, actions, err := s.CompleteTransaction(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, done.Status)
	require.Len(t, actions, 2)

	values := map[models.ActionName]int{}
	for _, a := range actions {
		values[a.Action] = a.Value
	}
	assert.Equal(t, 60, values[models.AddLabAccessDays])
	assert.Equal(t, 365, values[models.AddMembershipDays])

	_, _, err = s.CompleteTransaction(ctx, tr.ID)
	assert.ErrorIs(t, err, models.ErrTransactionNotPending)

	pending, err = s.PendingActions(ctx, m.ID, models.AddLabAccessDays, true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tr.ID, pending[0].TransactionID)
	assert.Equal(t, 2, pending[0].Item.Count)

	require.NoError(t, s.CompleteAction(ctx, pending[0].Action.ID))
	assert.ErrorIs(t, s.CompleteAction(ctx, pending[0].Action.ID), models.ErrNotFound)

	history, err := s.TransactionHistory(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Len(t, history[0].Contents, 2)
	assert.Equal(t, "Lab access", history[0].Contents[0].Product.Name)
	assert.Equal(t, models.Money(80000), history[0].Amount)

	require.NoError(t, s.DeleteProduct(ctx, lab.ID))
	_, err = s.GetProduct(ctx, lab.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Receipts keep showing deleted products.
	got, err := s.GetTransaction(ctx, tr.ID)
	require.NoError(t, err)
	assert.Len(t, got.Contents, 2)
}
