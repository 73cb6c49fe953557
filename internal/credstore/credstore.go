// Package credstore persists the session token and the signed-in user's
// profile between runs. The two entries are always written and cleared
// together.
package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"spendsnap/internal/domain"
)

// Persisted keys.
const (
	KeyToken = "user_token"
	KeyUser  = "user_data"
)

// Credentials is what a signed-in session leaves behind.
type Credentials struct {
	Token string
	User  domain.User
}

// Store is a key-value credential store.
type Store interface {
	// Load returns the persisted credentials. ok is false when either entry
	// is missing or unreadable.
	Load(ctx context.Context) (creds Credentials, ok bool, err error)
	// Save writes both entries atomically.
	Save(ctx context.Context, token string, user domain.User) error
	// Clear removes both entries.
	Clear(ctx context.Context) error
	// Token returns the persisted token, or "" when there is none.
	Token(ctx context.Context) (string, error)
}

var errEmptyToken = errors.New("credstore: empty token")

func encodeUser(user domain.User) (string, error) {
	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("encoding user: %w", err)
	}
	return string(data), nil
}

func decodeUser(raw string) (domain.User, bool) {
	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		return domain.User{}, false
	}
	return u, true
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Load(_ context.Context) (Credentials, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, rawUser := m.entries[KeyToken], m.entries[KeyUser]
	if token == "" || rawUser == "" {
		return Credentials{}, false, nil
	}
	user, ok := decodeUser(rawUser)
	if !ok {
		return Credentials{}, false, nil
	}
	return Credentials{Token: token, User: user}, true, nil
}

func (m *Memory) Save(_ context.Context, token string, user domain.User) error {
	if token == "" {
		return errEmptyToken
	}
	raw, err := encodeUser(user)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[KeyToken] = token
	m.entries[KeyUser] = raw
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, KeyToken)
	delete(m.entries, KeyUser)
	return nil
}

func (m *Memory) Token(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[KeyToken], nil
}
