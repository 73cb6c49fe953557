package client

import (
	"context"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
)

// CredentialStore is where AuthAPI persists a successful sign-in.
type CredentialStore interface {
	CredentialSource
	Save(ctx context.Context, token string, user domain.User) error
}

// AuthAPI wraps the /auth endpoints.
type AuthAPI struct {
	c     *Client
	store CredentialStore
}

// NewAuthAPI creates an AuthAPI that persists credentials in store.
func NewAuthAPI(c *Client, store CredentialStore) *AuthAPI {
	return &AuthAPI{c: c, store: store}
}

// Login signs in and persists the token and profile.
func (a *AuthAPI) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	return a.authenticate(ctx, "/auth/login", domain.LoginRequest{Email: email, Password: password})
}

// Signup registers a new account and persists the token and profile.
func (a *AuthAPI) Signup(ctx context.Context, name, email, password string) (domain.User, string, error) {
	return a.authenticate(ctx, "/auth/signup", domain.SignupRequest{Name: name, Email: email, Password: password})
}

func (a *AuthAPI) authenticate(ctx context.Context, path string, body any) (domain.User, string, error) {
	var resp domain.AuthResponse
	if err := a.c.Post(ctx, path, body, &resp); err != nil {
		return domain.User{}, "", err
	}
	if !resp.Success || resp.Token == "" {
		return domain.User{}, "", apperrors.WithMessage(apperrors.ErrInvalidCredentials, firstNonEmpty(resp.Message, apperrors.ErrInvalidCredentials.Message))
	}
	if err := a.store.Save(ctx, resp.Token, resp.User); err != nil {
		return domain.User{}, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp.User, resp.Token, nil
}

// Logout tells the API the session is over and clears local credentials.
// The server call is best effort; only a failure to clear is returned.
func (a *AuthAPI) Logout(ctx context.Context) error {
	if err := a.c.Post(ctx, "/auth/logout", nil, nil); err != nil {
		a.c.log.Warnw("logout request failed", "error", err)
	}
	return a.store.Clear(context.WithoutCancel(ctx))
}

// Profile returns the signed-in user's profile.
func (a *AuthAPI) Profile(ctx context.Context) (domain.User, error) {
	var resp domain.APIResponse[domain.User]
	if err := a.c.Get(ctx, "/auth/profile", nil, &resp); err != nil {
		return domain.User{}, err
	}
	if !resp.Success {
		return domain.User{}, apperrors.WithMessage(apperrors.ErrUnauthorized, firstNonEmpty(resp.Message, resp.Error))
	}
	return resp.Data, nil
}
