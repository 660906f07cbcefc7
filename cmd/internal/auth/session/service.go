package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"wardrobe/cmd/identity"
	"wardrobe/cmd/internal/fault"
	"wardrobe/cmd/security/password"
)

// Login outcomes reported to a Recorder.
const (
	OutcomeSuccess        = "success"
	OutcomeBadCredentials = "bad_credentials"
	OutcomeError          = "error"
)

// AccountStore is the subset of identity.Store used by account flows.
type AccountStore interface {
	FindAccountByUsername(ctx context.Context, username string) (identity.AccountAuth, error)
	InsertAccount(ctx context.Context, in identity.NewAccount) (identity.Account, error)
}

// Hasher applies the password policy and hashes or verifies secrets.
// password.Config satisfies it.
type Hasher interface {
	Validate(pw string) error
	Hash(pw string) (string, error)
	Verify(encodedHash, pw string) (bool, error)
}

// TokenIssuer signs a token for an account id.
type TokenIssuer interface {
	Issue(subject int64) (string, error)
}

// Recorder observes login attempts.
type Recorder interface {
	Login(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Login(string) {}

// Service implements registration and login.
type Service struct {
	accounts AccountStore
	hasher   Hasher
	tokens   TokenIssuer
	log      *slog.Logger
	rec      Recorder

	// dummyHash is verified when the username is unknown so that both failure
	// paths cost one hash computation.
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder installs a login observer (metrics).
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.rec = r
		}
	}
}

// Registration is the input of Register.
type Registration struct {
	Username string
	Password string
	Nickname string
}

// Issued is a freshly signed token and the account it names.
type Issued struct {
	Token   string
	Account identity.Account
}

// NewService wires account flows. It precomputes the dummy hash used for timing resistance.
func NewService(accounts AccountStore, hasher Hasher, tokens TokenIssuer, log *slog.Logger, opts ...Option) (*Service, error) {
	if accounts == nil || hasher == nil || tokens == nil {
		return nil, ErrConfig
	}
	if log == nil {
		log = slog.Default()
	}

	dummy, err := hasher.Hash("dummy-password-for-timing-only")
	if err != nil {
		return nil, fmt.Errorf("session: dummy hash: %w", err)
	}

	s := &Service{
		accounts:  accounts,
		hasher:    hasher,
		tokens:    tokens,
		log:       log,
		rec:       nopRecorder{},
		dummyHash: dummy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Register creates an account owning only the default item and signs a token for it.
func (s *Service) Register(ctx context.Context, in Registration) (Issued, error) {
	const op = "session.Register"

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return Issued{}, fault.Validation(op, ErrUsernameRequired)
	}
	if err := s.hasher.Validate(in.Password); err != nil {
		return Issued{}, fault.Validation(op, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.log.Error("auth.register.hash.fail", "err", err)
		return Issued{}, fault.Internal(op, err)
	}

	acc, err := s.accounts.InsertAccount(ctx, identity.NewAccount{
		Username:     username,
		Nickname:     in.Nickname,
		PasswordHash: hash,
	})
	if err != nil {
		if identity.IsConflict(err) {
			s.log.Debug("auth.register.username_taken", "username", username)
			return Issued{}, fault.Validation(op, ErrUsernameTaken)
		}
		s.log.Error("auth.register.insert.fail", "err", err)
		return Issued{}, fault.Internal(op, err)
	}

	tok, err := s.tokens.Issue(acc.ID)
	if err != nil {
		s.log.Error("auth.register.issue.fail", "account_id", acc.ID, "err", err)
		return Issued{}, fault.Internal(op, err)
	}

	s.log.Info("auth.register.ok", "account_id", acc.ID)
	return Issued{Token: tok, Account: acc}, nil
}

// Login verifies credentials and signs a token.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, pw string) (Issued, error) {
	const op = "session.Login"

	auth, err := s.accounts.FindAccountByUsername(ctx, username)
	if err != nil {
		if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
			_, _ = s.hasher.Verify(s.dummyHash, pw)
			s.rec.Login(OutcomeBadCredentials)
			return Issued{}, fault.Validation(op, ErrBadCredentials)
		}
		s.rec.Login(OutcomeError)
		s.log.Error("auth.login.lookup.fail", "err", err)
		return Issued{}, fault.Internal(op, err)
	}

	ok, err := s.hasher.Verify(auth.PasswordHash, pw)
	if err != nil {
		s.rec.Login(OutcomeError)
		s.log.Error("auth.login.verify.fail", "account_id", auth.Account.ID, "err", err)
		return Issued{}, fault.Internal(op, err)
	}
	if !ok {
		s.rec.Login(OutcomeBadCredentials)
		s.log.Debug("auth.login.bad_password", "account_id", auth.Account.ID)
		return Issued{}, fault.Validation(op, ErrBadCredentials)
	}

	tok, err := s.tokens.Issue(auth.Account.ID)
	if err != nil {
		s.rec.Login(OutcomeError)
		s.log.Error("auth.login.issue.fail", "account_id", auth.Account.ID, "err", err)
		return Issued{}, fault.Internal(op, err)
	}

	s.rec.Login(OutcomeSuccess)
	s.log.Info("auth.login.ok", "account_id", auth.Account.ID)
	return Issued{Token: tok, Account: auth.Account}, nil
}

// IsBadCredentials reports whether err is a rejected login.
func IsBadCredentials(err error) bool { return errors.Is(err, ErrBadCredentials) }

var _ Hasher = password.Config{}
