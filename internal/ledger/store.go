// Package ledger holds the signed-in user's expense collection. The Store is
// the only writer of that collection; every mutation goes through the backing
// Source first and is applied locally only when it succeeds.
package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/logger"
	"spendsnap/internal/uuid"
	"spendsnap/internal/validator"
)

// Source is the system of record the Store mirrors: the remote API or the
// demo fixture.
type Source interface {
	All(ctx context.Context) ([]domain.Expense, error)
	Create(ctx context.Context, req domain.CreateExpenseRequest) (domain.Expense, error)
	Update(ctx context.Context, id string, req domain.UpdateExpenseRequest) (domain.Expense, error)
	Delete(ctx context.Context, id string) error
}

// Store is the in-memory expense collection for one session. Items are kept
// in insertion-recency order: Add prepends.
type Store struct {
	mu     sync.Mutex
	source Source
	items  []domain.Expense
	userID string
	open   bool
	// epoch advances on every Open and Close; a mutation whose I/O began in
	// an earlier epoch is discarded.
	epoch uint64

	now   func() time.Time
	newID func() string
	log   *zap.SugaredLogger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for timestamps and month filters.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the expense id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore creates a closed store backed by source.
func NewStore(source Source, opts ...Option) *Store {
	s := &Store{
		source: source,
		now:    time.Now,
		newID:  uuid.New,
		log:    logger.Named("ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts a session for userID with an empty collection.
func (s *Store) Open(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.open = true
	s.userID = userID
	s.items = nil
}

// Close ends the session and drops the collection. Pending mutations that
// complete afterwards are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.open = false
	s.userID = ""
	s.items = nil
}

// IsOpen reports whether a session is active.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// begin checks the store is open and returns the current epoch.
func (s *Store) begin() (uint64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, "", apperrors.ErrNotAuthenticated
	}
	return s.epoch, s.userID, nil
}

// commit runs apply under the lock if the epoch is unchanged.
func (s *Store) commit(epoch uint64, op string, apply func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.epoch != epoch {
		s.log.Debugw("discarding result from ended session", "op", op)
		return apperrors.ErrNotAuthenticated
	}
	return apply()
}

// Refresh replaces the collection with the source's current contents.
func (s *Store) Refresh(ctx context.Context) error {
	epoch, userID, err := s.begin()
	if err != nil {
		return err
	}

	items, err := s.source.All(ctx)
	if err != nil {
		s.log.Warnw("refresh failed", "error", err)
		return err
	}

	return s.commit(epoch, "refresh", func() error {
		s.items = s.sanitize(items, userID)
		s.log.Debugw("collection refreshed", "count", len(s.items))
		return nil
	})
}

// sanitize drops records without an id or with a repeated id, coerces
// unknown categories and assigns ownerless records to userID.
func (s *Store) sanitize(items []domain.Expense, userID string) []domain.Expense {
	out := make([]domain.Expense, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, e := range items {
		if e.ID == "" {
			s.log.Warnw("dropping expense without id", "title", e.Title)
			continue
		}
		if _, dup := seen[e.ID]; dup {
			s.log.Warnw("dropping duplicate expense", "id", e.ID)
			continue
		}
		seen[e.ID] = struct{}{}
		e = e.Clone()
		e.Category = domain.ParseCategory(string(e.Category))
		if e.UserID == "" {
			e.UserID = userID
		}
		out = append(out, e)
	}
	return out
}

// Add validates req, assigns an id and commits it through the source. The
// stored record is prepended.
func (s *Store) Add(ctx context.Context, req domain.CreateExpenseRequest) (domain.Expense, error) {
	epoch, userID, err := s.begin()
	if err != nil {
		return domain.Expense{}, err
	}
	if err := validator.Struct(req); err != nil {
		return domain.Expense{}, err
	}

	req.ID = s.newID()
	now := s.now()
	local := domain.NewExpense(req.ID, userID, req, now)

	created, err := s.source.Create(ctx, req)
	if err != nil {
		s.log.Warnw("add failed", "error", err)
		return domain.Expense{}, err
	}
	created = mergeCreated(local, created)

	err = s.commit(epoch, "add", func() error {
		if s.indexOf(created.ID) >= 0 {
			return apperrors.ErrDuplicateID
		}
		s.items = slices.Insert(s.items, 0, created)
		return nil
	})
	if err != nil {
		return domain.Expense{}, err
	}
	s.log.Debugw("expense added", "id", created.ID)
	return created.Clone(), nil
}

// mergeCreated fills what the source left out of its echo from the locally
// built record.
func mergeCreated(local, remote domain.Expense) domain.Expense {
	if remote.ID == "" {
		return local
	}
	if remote.UserID == "" {
		remote.UserID = local.UserID
	}
	if remote.CreatedAt.IsZero() {
		remote.CreatedAt = local.CreatedAt
	}
	if remote.UpdatedAt.IsZero() {
		remote.UpdatedAt = local.UpdatedAt
	}
	remote.Category = domain.ParseCategory(string(remote.Category))
	return remote
}

// Update merges the supplied fields into the expense with id. An unknown id
// fails with EXPENSE_NOT_FOUND before any I/O. The record keeps its position.
func (s *Store) Update(ctx context.Context, id string, req domain.UpdateExpenseRequest) (domain.Expense, error) {
	epoch, _, err := s.begin()
	if err != nil {
		return domain.Expense{}, err
	}
	if err := validator.Struct(req); err != nil {
		return domain.Expense{}, err
	}

	current, ok := s.Get(id)
	if !ok {
		return domain.Expense{}, apperrors.ErrExpenseNotFound
	}

	remote, err := s.source.Update(ctx, id, req)
	if err != nil {
		s.log.Warnw("update failed", "id", id, "error", err)
		return domain.Expense{}, err
	}

	var updated domain.Expense
	err = s.commit(epoch, "update", func() error {
		idx := s.indexOf(id)
		if idx < 0 {
			return apperrors.ErrExpenseNotFound
		}
		updated = s.items[idx].Apply(req, s.now())
		if remote.ID == id && remote.UpdatedAt.After(updated.UpdatedAt) {
			updated.UpdatedAt = remote.UpdatedAt
		}
		updated.ID = current.ID
		updated.UserID = current.UserID
		updated.CreatedAt = current.CreatedAt
		s.items[idx] = updated
		return nil
	})
	if err != nil {
		return domain.Expense{}, err
	}
	return updated.Clone(), nil
}

// Delete removes the expense with id. Deleting an unknown id is a no-op and
// performs no I/O.
func (s *Store) Delete(ctx context.Context, id string) error {
	epoch, _, err := s.begin()
	if err != nil {
		return err
	}
	if _, ok := s.Get(id); !ok {
		return nil
	}

	if err := s.source.Delete(ctx, id); err != nil {
		s.log.Warnw("delete failed", "id", id, "error", err)
		return err
	}

	return s.commit(epoch, "delete", func() error {
		if idx := s.indexOf(id); idx >= 0 {
			s.items = slices.Delete(s.items, idx, idx+1)
		}
		return nil
	})
}

// List returns a copy of the collection in insertion-recency order.
func (s *Store) List() []domain.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.items)
}

// Get returns a copy of the expense with id.
func (s *Store) Get(id string) (domain.Expense, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.items[idx].Clone(), true
	}
	return domain.Expense{}, false
}

// Count returns the number of expenses.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(e domain.Expense) bool { return e.ID == id })
}

func cloneAll(items []domain.Expense) []domain.Expense {
	out := make([]domain.Expense, len(items))
	for i, e := range items {
		out[i] = e.Clone()
	}
	return out
}
