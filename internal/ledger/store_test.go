package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
)

// fakeSource records calls and can fail or block on demand.
type fakeSource struct {
	mu      sync.Mutex
	items   []domain.Expense
	calls   map[string]int
	failErr error
	gate    chan struct{} // when non-nil, Create waits on it
	entered chan struct{}
}

func newFakeSource(items ...domain.Expense) *fakeSource {
	return &fakeSource{items: items, calls: map[string]int{}}
}

func (f *fakeSource) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.failErr
}

func (f *fakeSource) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeSource) All(context.Context) ([]domain.Expense, error) {
	if err := f.record("all"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneAll(f.items), nil
}

func (f *fakeSource) Create(ctx context.Context, req domain.CreateExpenseRequest) (domain.Expense, error) {
	if f.entered != nil {
		close(f.entered)
	}
	if f.gate != nil {
		<-f.gate
	}
	if err := f.record("create"); err != nil {
		return domain.Expense{}, err
	}
	return domain.NewExpense(req.ID, "", req, time.Time{}), nil
}

func (f *fakeSource) Update(_ context.Context, id string, req domain.UpdateExpenseRequest) (domain.Expense, error) {
	if err := f.record("update"); err != nil {
		return domain.Expense{}, err
	}
	return domain.Expense{ID: id}, nil
}

func (f *fakeSource) Delete(context.Context, string) error {
	return f.record("delete")
}

var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newOpenStore(t *testing.T, src Source) *Store {
	t.Helper()
	s := NewStore(src, WithClock(func() time.Time { return fixedNow }), WithIDGenerator(sequentialIDs()))
	s.Open("u-1")
	return s
}

func createReq(title, amount string) domain.CreateExpenseRequest {
	return domain.CreateExpenseRequest{
		Title:       title,
		Description: title + " description",
		Amount:      decimal.RequireFromString(amount),
		Category:    domain.CategoryShopping,
		Date:        domain.NewDate(2024, time.March, 1),
	}
}

func expense(id, amount string, cat domain.Category, date domain.Date) domain.Expense {
	return domain.Expense{
		ID:          id,
		Title:       "t-" + id,
		Description: "d-" + id,
		Amount:      decimal.RequireFromString(amount),
		Category:    cat,
		Date:        date,
	}
}

func ids(items []domain.Expense) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.ID
	}
	return out
}

func TestAdd_PrependsAndAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	s := newOpenStore(t, newFakeSource())

	e1, err := s.Add(ctx, createReq("first", "10.00"))
	require.NoError(t, err)
	e2, err := s.Add(ctx, createReq("second", "5.25"))
	require.NoError(t, err)

	assert.Equal(t, []string{e2.ID, e1.ID}, ids(s.List()))
	assert.NotEqual(t, e1.ID, e2.ID)
	assert.Equal(t, "u-1", e1.UserID)
	assert.Equal(t, fixedNow, e1.CreatedAt)
	assert.Equal(t, fixedNow, e1.UpdatedAt)
}

func TestAdd_DefaultIDsAreUUIDs(t *testing.T) {
	s := NewStore(newFakeSource())
	s.Open("u-1")

	e, err := s.Add(context.Background(), createReq("lunch", "9"))
	require.NoError(t, err)
	assert.Len(t, e.ID, 36)
}

func TestAdd_ValidationFailsBeforeIO(t *testing.T) {
	src := newFakeSource()
	s := newOpenStore(t, src)

	req := createReq("", "10")
	_, err := s.Add(context.Background(), req)

	require.Error(t, err)
	assert.Equal(t, "INVALID_INPUT", apperrors.CodeOf(err))
	assert.Equal(t, 0, src.count("create"))
	assert.Empty(t, s.List())
}

func TestAdd_NegativeAmountRejected(t *testing.T) {
	s := newOpenStore(t, newFakeSource())
	_, err := s.Add(context.Background(), createReq("refund", "-1"))
	assert.Equal(t, "INVALID_INPUT", apperrors.CodeOf(err))
}

func TestAdd_SourceFailureLeavesCollection(t *testing.T) {
	src := newFakeSource()
	s := newOpenStore(t, src)
	_, err := s.Add(context.Background(), createReq("kept", "1"))
	require.NoError(t, err)
	before := s.List()

	src.failErr = errors.New("boom")
	_, err = s.Add(context.Background(), createReq("lost", "2"))

	require.Error(t, err)
	assert.Equal(t, before, s.List())
}

func TestAdd_ClosedStore(t *testing.T) {
	s := NewStore(newFakeSource())
	_, err := s.Add(context.Background(), createReq("x", "1"))
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("merges_and_keeps_position", func(t *testing.T) {
		s := newOpenStore(t, newFakeSource())
		a, _ := s.Add(ctx, createReq("a", "1"))
		b, _ := s.Add(ctx, createReq("b", "2"))
		_, _ = s.Add(ctx, createReq("c", "3"))

		later := fixedNow.Add(time.Hour)
		s.now = func() time.Time { return later }

		title := "b-renamed"
		got, err := s.Update(ctx, b.ID, domain.UpdateExpenseRequest{Title: &title})
		require.NoError(t, err)

		assert.Equal(t, "b-renamed", got.Title)
		assert.Equal(t, b.Description, got.Description)
		assert.True(t, got.Amount.Equal(b.Amount))
		assert.Equal(t, later, got.UpdatedAt)
		assert.Equal(t, b.CreatedAt, got.CreatedAt)
		assert.Equal(t, b.ID, s.List()[1].ID)
		assert.Equal(t, a.ID, s.List()[2].ID)
	})

	t.Run("unknown_id_fails_without_io", func(t *testing.T) {
		src := newFakeSource()
		s := newOpenStore(t, src)
		_, _ = s.Add(ctx, createReq("a", "1"))
		before := s.List()

		title := "x"
		_, err := s.Update(ctx, "missing", domain.UpdateExpenseRequest{Title: &title})

		assert.ErrorIs(t, err, apperrors.ErrExpenseNotFound)
		assert.Equal(t, 0, src.count("update"))
		assert.Equal(t, before, s.List())
	})

	t.Run("invalid_category_rejected", func(t *testing.T) {
		s := newOpenStore(t, newFakeSource())
		e, _ := s.Add(ctx, createReq("a", "1"))

		bad := domain.Category("Groceries")
		_, err := s.Update(ctx, e.ID, domain.UpdateExpenseRequest{Category: &bad})
		assert.Equal(t, "INVALID_INPUT", apperrors.CodeOf(err))
		got, _ := s.Get(e.ID)
		assert.Equal(t, domain.CategoryShopping, got.Category)
	})

	t.Run("source_failure_leaves_record", func(t *testing.T) {
		src := newFakeSource()
		s := newOpenStore(t, src)
		e, _ := s.Add(ctx, createReq("a", "1"))

		src.failErr = errors.New("offline")
		title := "changed"
		_, err := s.Update(ctx, e.ID, domain.UpdateExpenseRequest{Title: &title})
		require.Error(t, err)

		got, _ := s.Get(e.ID)
		assert.Equal(t, "a", got.Title)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes", func(t *testing.T) {
		s := newOpenStore(t, newFakeSource())
		a, _ := s.Add(ctx, createReq("a", "1"))
		b, _ := s.Add(ctx, createReq("b", "2"))

		require.NoError(t, s.Delete(ctx, a.ID))
		assert.Equal(t, []string{b.ID}, ids(s.List()))
	})

	t.Run("unknown_id_is_noop", func(t *testing.T) {
		src := newFakeSource()
		s := newOpenStore(t, src)
		_, _ = s.Add(ctx, createReq("a", "1"))
		before := s.List()

		require.NoError(t, s.Delete(ctx, "nope"))
		assert.Equal(t, before, s.List())
		assert.Equal(t, 0, src.count("delete"))
	})

	t.Run("source_failure_keeps_record", func(t *testing.T) {
		src := newFakeSource()
		s := newOpenStore(t, src)
		a, _ := s.Add(ctx, createReq("a", "1"))

		src.failErr = errors.New("offline")
		require.Error(t, s.Delete(ctx, a.ID))
		assert.Equal(t, 1, s.Count())
	})
}

func TestRefresh_ReplacesAndSanitizes(t *testing.T) {
	d := domain.NewDate(2024, time.March, 2)
	src := newFakeSource(
		expense("a", "1", domain.CategoryTravel, d),
		expense("a", "2", domain.CategoryTravel, d),
		expense("", "3", domain.CategoryTravel, d),
		expense("b", "4", domain.Category("Mystery"), d),
	)
	s := newOpenStore(t, src)
	_, _ = s.Add(context.Background(), createReq("local", "9"))

	require.NoError(t, s.Refresh(context.Background()))

	items := s.List()
	assert.Equal(t, []string{"a", "b"}, ids(items))
	assert.Equal(t, domain.CategoryOthers, items[1].Category)
	for _, e := range items {
		assert.Equal(t, "u-1", e.UserID, "ownerless record %s", e.ID)
	}
}

func TestDemoSource_AddedExpenseKeepsOwnerAfterRefresh(t *testing.T) {
	ctx := context.Background()
	src := NewDemoSource()
	src.Seed(DemoExpenses())
	s := NewStore(src)
	s.Open(DemoUserID)
	require.NoError(t, s.Refresh(ctx))

	added, err := s.Add(ctx, createReq("Lunch", "14.20"))
	require.NoError(t, err)
	assert.Equal(t, DemoUserID, added.UserID)

	require.NoError(t, s.Refresh(ctx))
	items := s.List()
	require.Len(t, items, 6)
	assert.Equal(t, added.ID, items[0].ID)
	for _, e := range items {
		assert.Equal(t, DemoUserID, e.UserID, "expense %s", e.ID)
	}

	stored, err := src.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, DemoUserID, stored[0].UserID)
}

func TestUniqueIDsAndValidCategories(t *testing.T) {
	ctx := context.Background()
	s := newOpenStore(t, newFakeSource())

	for i := 0; i < 20; i++ {
		e, err := s.Add(ctx, createReq(fmt.Sprintf("e%d", i), "1"))
		require.NoError(t, err)
		if i%3 == 0 {
			cat := domain.Categories[i%len(domain.Categories)]
			_, err = s.Update(ctx, e.ID, domain.UpdateExpenseRequest{Category: &cat})
			require.NoError(t, err)
		}
		if i%4 == 0 {
			require.NoError(t, s.Delete(ctx, e.ID))
		}
	}

	seen := map[string]bool{}
	for _, e := range s.List() {
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
		assert.True(t, e.Category.IsValid(), "invalid category %q", e.Category)
	}
}

func TestLogoutDuringPendingAdd(t *testing.T) {
	src := newFakeSource()
	src.gate = make(chan struct{})
	src.entered = make(chan struct{})
	s := newOpenStore(t, src)

	done := make(chan error, 1)
	go func() {
		_, err := s.Add(context.Background(), createReq("pending", "5"))
		done <- err
	}()

	<-src.entered
	s.Close()
	close(src.gate)

	err := <-done
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
	assert.False(t, s.IsOpen())
	assert.Empty(t, s.List())

	// A new session must not see the stale add either.
	s.Open("u-2")
	assert.Empty(t, s.List())
}
