// Package session owns the signed-in user and gates the expense ledger.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spendsnap/internal/credstore"
	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/ledger"
	"spendsnap/internal/logger"
	"spendsnap/internal/validator"
)

// State is the gate's authentication state.
type State int

const (
	StateInitializing State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Authenticator talks to the identity backend. Login and Signup persist the
// credentials they obtain.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (domain.User, string, error)
	Signup(ctx context.Context, name, email, password string) (domain.User, string, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (domain.User, error)
}

// Gate tracks who is signed in and opens or closes the ledger accordingly.
type Gate struct {
	mu      sync.Mutex
	state   State
	user    *domain.User
	loading bool
	// epoch advances on logout so in-flight sign-ins can tell they lost.
	epoch uint64

	auth   Authenticator
	creds  credstore.Store
	ledger *ledger.Store
	now    func() time.Time
	log    *zap.SugaredLogger
}

// NewGate returns a gate in the Initializing state. Call Resume once at start.
func NewGate(auth Authenticator, creds credstore.Store, store *ledger.Store) *Gate {
	return &Gate{
		state:  StateInitializing,
		auth:   auth,
		creds:  creds,
		ledger: store,
		now:    time.Now,
		log:    logger.Named("session"),
	}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// IsAuthenticated reports whether a user is signed in.
func (g *Gate) IsAuthenticated() bool { return g.State() == StateAuthenticated }

// IsInitializing reports whether the stored session is still being checked.
func (g *Gate) IsInitializing() bool { return g.State() == StateInitializing }

// IsLoading reports whether a login or signup is in flight.
func (g *Gate) IsLoading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading
}

// User returns the signed-in user.
func (g *Gate) User() (domain.User, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.user == nil {
		return domain.User{}, false
	}
	return *g.user, true
}

// Ledger returns the gated expense store.
func (g *Gate) Ledger() *ledger.Store { return g.ledger }

// Resume restores a persisted session. It returns SESSION_EXPIRED when the
// stored token is expired or rejected; a missing session is not an error.
func (g *Gate) Resume(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StateInitializing {
		g.mu.Unlock()
		return nil
	}
	epoch := g.epoch
	g.mu.Unlock()

	creds, ok, err := g.creds.Load(ctx)
	if err != nil {
		g.log.Warnw("could not read stored session", "error", err)
	}
	if !ok {
		g.settle(epoch, StateUnauthenticated, nil)
		return nil
	}

	if tokenExpired(creds.Token, g.now()) {
		g.log.Infow("stored session expired", "user_id", creds.User.ID)
		g.dropCredentials(ctx)
		g.settle(epoch, StateUnauthenticated, nil)
		return apperrors.ErrSessionExpired
	}

	g.ledger.Open(creds.User.ID)
	user := creds.User

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		fresh, err := g.auth.Profile(egCtx)
		switch {
		case err == nil:
			user = fresh
		case errors.Is(err, apperrors.ErrUnauthorized):
			return apperrors.Wrap(apperrors.ErrSessionExpired, err)
		default:
			g.log.Warnw("could not refresh profile, using stored copy", "error", err)
		}
		return nil
	})
	eg.Go(func() error {
		if err := g.ledger.Refresh(egCtx); err != nil {
			g.log.Warnw("could not load expenses", "error", err)
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		g.ledger.Close()
		g.dropCredentials(ctx)
		g.settle(epoch, StateUnauthenticated, nil)
		return err
	}

	if !g.settle(epoch, StateAuthenticated, &user) {
		g.ledger.Close()
		return apperrors.ErrNotAuthenticated
	}
	g.log.Infow("session resumed", "user_id", user.ID)
	return nil
}

// settle moves to state if no logout happened since epoch.
func (g *Gate) settle(epoch uint64, state State, user *domain.User) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.epoch != epoch {
		if g.state == StateInitializing {
			g.state = StateUnauthenticated
		}
		return false
	}
	g.state = state
	g.user = user
	return true
}

// Login signs in and loads the user's expenses.
func (g *Gate) Login(ctx context.Context, email, password string) error {
	if err := validator.Struct(domain.LoginRequest{Email: email, Password: password}); err != nil {
		return err
	}
	user, err := g.signIn(ctx, func(ctx context.Context) (domain.User, string, error) {
		return g.auth.Login(ctx, email, password)
	})
	if err != nil {
		return err
	}
	if err := g.ledger.Refresh(ctx); err != nil {
		g.log.Warnw("could not load expenses after login", "user_id", user.ID, "error", err)
	}
	return nil
}

// Signup registers a new account. The ledger starts empty.
func (g *Gate) Signup(ctx context.Context, name, email, password string) error {
	if err := validator.Struct(domain.SignupRequest{Name: name, Email: email, Password: password}); err != nil {
		return err
	}
	_, err := g.signIn(ctx, func(ctx context.Context) (domain.User, string, error) {
		return g.auth.Signup(ctx, name, email, password)
	})
	return err
}

func (g *Gate) signIn(ctx context.Context, call func(context.Context) (domain.User, string, error)) (domain.User, error) {
	g.mu.Lock()
	switch {
	case g.loading, g.state == StateInitializing:
		g.mu.Unlock()
		return domain.User{}, apperrors.ErrBusy
	case g.state == StateAuthenticated:
		g.mu.Unlock()
		return domain.User{}, apperrors.ErrAlreadySignedIn
	}
	g.loading = true
	epoch := g.epoch
	g.mu.Unlock()

	user, _, err := call(ctx)

	g.mu.Lock()
	g.loading = false
	if err != nil {
		g.mu.Unlock()
		g.log.Infow("sign-in failed", "error", err)
		return domain.User{}, err
	}
	if g.epoch != epoch {
		g.mu.Unlock()
		g.dropCredentials(ctx)
		return domain.User{}, apperrors.ErrNotAuthenticated
	}
	g.state = StateAuthenticated
	g.user = &user
	g.ledger.Open(user.ID)
	g.mu.Unlock()

	g.log.Infow("signed in", "user_id", user.ID)
	return user, nil
}

// Logout clears the user, the ledger and the stored credentials. It takes
// effect immediately; results of in-flight operations are discarded. Only a
// failure to clear local credentials is returned.
func (g *Gate) Logout(ctx context.Context) error {
	g.mu.Lock()
	g.epoch++
	g.state = StateUnauthenticated
	g.user = nil
	g.loading = false
	g.mu.Unlock()

	g.ledger.Close()

	if err := g.auth.Logout(ctx); err != nil {
		g.log.Warnw("logout call failed", "error", err)
	}
	if err := g.creds.Clear(context.WithoutCancel(ctx)); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	g.log.Infow("signed out")
	return nil
}

// Check inspects an error from a gated operation. A rejected token ends the
// session locally and is reported as SESSION_EXPIRED; other errors pass
// through unchanged.
func (g *Gate) Check(err error) error {
	if err == nil || !errors.Is(err, apperrors.ErrUnauthorized) {
		return err
	}
	g.mu.Lock()
	g.epoch++
	g.state = StateUnauthenticated
	g.user = nil
	g.mu.Unlock()
	g.ledger.Close()
	return apperrors.Wrap(apperrors.ErrSessionExpired, err)
}

func (g *Gate) dropCredentials(ctx context.Context) {
	if err := g.creds.Clear(context.WithoutCancel(ctx)); err != nil {
		g.log.Warnw("could not clear stored credentials", "error", err)
	}
}

// tokenExpired reports whether token is a JWT whose exp has passed. Opaque
// tokens are never considered expired here.
func tokenExpired(token string, now time.Time) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
