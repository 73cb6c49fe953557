package session

import (
	"context"
	"strings"
	"time"

	"spendsnap/internal/credstore"
	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/ledger"
)

const demoToken = "demo-token"

// DemoUser is the account every demo login signs in as.
func DemoUser() domain.User {
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	return domain.User{
		ID:        ledger.DemoUserID,
		Name:      "John Doe",
		Email:     "john@example.com",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// DemoAuthenticator accepts any non-empty credentials. Login seeds the demo
// source with the fixture expenses; Signup starts it empty.
type DemoAuthenticator struct {
	source *ledger.DemoSource
	creds  credstore.Store
}

// NewDemoAuthenticator creates a DemoAuthenticator.
func NewDemoAuthenticator(source *ledger.DemoSource, creds credstore.Store) *DemoAuthenticator {
	return &DemoAuthenticator{source: source, creds: creds}
}

func (d *DemoAuthenticator) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return domain.User{}, "", apperrors.ErrInvalidCredentials
	}
	user := DemoUser()
	if err := d.creds.Save(ctx, demoToken, user); err != nil {
		return domain.User{}, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	d.source.Seed(ledger.DemoExpenses())
	return user, demoToken, nil
}

func (d *DemoAuthenticator) Signup(ctx context.Context, name, email, password string) (domain.User, string, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return domain.User{}, "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid data")
	}
	user := DemoUser()
	user.Name = name
	user.Email = email
	if err := d.creds.Save(ctx, demoToken, user); err != nil {
		return domain.User{}, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	d.source.Seed(nil)
	return user, demoToken, nil
}

func (d *DemoAuthenticator) Logout(ctx context.Context) error {
	return d.creds.Clear(ctx)
}

func (d *DemoAuthenticator) Profile(ctx context.Context) (domain.User, error) {
	creds, ok, err := d.creds.Load(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, apperrors.ErrUnauthorized
	}
	return creds.User, nil
}
