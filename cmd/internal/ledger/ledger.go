// Package ledger grants costumes and achievements to accounts and keeps the star balance
// that gates costume unlocks.
//
// Grants are set unions performed by the store under a per-account lock, so repeating a
// grant is a no-op and concurrent grants never lose each other. The balance check reads
// committed scores only; a score submitted concurrently with an unlock may or may not be
// counted. Unlocking does not spend stars: the balance is a threshold, not a wallet.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"wardrobe/cmd/identity"
	"wardrobe/cmd/internal/catalog"
	"wardrobe/cmd/internal/fault"
)

// Grant outcomes reported to a Recorder.
const (
	OutcomeGranted           = "granted"
	OutcomeUnknownItem       = "unknown_item"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeVanished          = "account_vanished"
	OutcomeError             = "error"
)

// Recorder observes grant attempts.
type Recorder interface {
	Grant(kind, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Grant(string, string) {}

const (
	defaultScoreLimit      = 100
	defaultMaxScoreLimit   = 1000
	defaultMutationTimeout = 10 * time.Second
)

// Service is the entitlement ledger.
type Service struct {
	store   identity.Store
	catalog *catalog.Catalog
	log     *slog.Logger
	rec     Recorder

	maxScoreLimit   int64
	mutationTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder installs a grant observer (metrics).
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithMaxScoreLimit caps the page size of Scores.
func WithMaxScoreLimit(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxScoreLimit = n
		}
	}
}

// WithMutationTimeout bounds store mutations that outlive their request.
func WithMutationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.mutationTimeout = d
		}
	}
}

// New wires a ledger over store and an immutable catalog.
func New(store identity.Store, cat *catalog.Catalog, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		store:           store,
		catalog:         cat,
		log:             log,
		rec:             nopRecorder{},
		maxScoreLimit:   defaultMaxScoreLimit,
		mutationTimeout: defaultMutationTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Catalog exposes the read-only catalog the ledger was built with.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// mutationContext detaches a store write from request cancellation.
// Once issued, a grant either commits or rolls back on its own schedule.
func (s *Service) mutationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.mutationTimeout)
}

// Account returns the account or a NotFound fault.
func (s *Service) Account(ctx context.Context, accountID int64) (identity.Account, error) {
	const op = "ledger.Account"

	a, err := s.store.FindAccountByID(ctx, accountID)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Account{}, fault.NotFound(op, ErrAccountNotFound)
		}
		return identity.Account{}, s.internal(op, accountID, err)
	}
	return a, nil
}

// UnlockCostume grants a costume when the summed stars reach its price.
func (s *Service) UnlockCostume(ctx context.Context, accountID int64, key string) (identity.Account, error) {
	const op = "ledger.UnlockCostume"
	kind := string(catalog.KindCostume)

	item, ok := s.catalog.Costume(key)
	if !ok {
		s.rec.Grant(kind, OutcomeUnknownItem)
		return identity.Account{}, fault.Validation(op, ErrUnknownCostume)
	}

	balance, err := s.store.SumStars(ctx, accountID)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Account{}, s.vanished(op, accountID, identity.ItemCostume, key)
		}
		s.rec.Grant(kind, OutcomeError)
		return identity.Account{}, s.internal(op, accountID, err)
	}
	if balance < item.Price {
		s.rec.Grant(kind, OutcomeInsufficientFunds)
		s.log.Debug("ledger.unlock.insufficient_funds", "account_id", accountID, "item", key, "balance", balance, "price", item.Price)
		return identity.Account{}, fault.Validation(op, ErrInsufficientFunds)
	}

	return s.grant(ctx, op, accountID, identity.ItemCostume, key)
}

// UnlockAchievement grants an achievement that exists in the catalog.
func (s *Service) UnlockAchievement(ctx context.Context, accountID int64, key string) (identity.Account, error) {
	const op = "ledger.UnlockAchievement"

	if _, ok := s.catalog.Achievement(key); !ok {
		s.rec.Grant(string(catalog.KindAchievement), OutcomeUnknownItem)
		return identity.Account{}, fault.Validation(op, ErrUnknownAchievement)
	}
	return s.grant(ctx, op, accountID, identity.ItemAchievement, key)
}

func (s *Service) grant(ctx context.Context, op string, accountID int64, kind identity.ItemKind, key string) (identity.Account, error) {
	mctx, cancel := s.mutationContext(ctx)
	defer cancel()

	a, err := s.store.MergeUnlockedItem(mctx, accountID, kind, key)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Account{}, s.vanished(op, accountID, kind, key)
		}
		s.rec.Grant(string(kind), OutcomeError)
		return identity.Account{}, s.internal(op, accountID, err)
	}

	s.rec.Grant(string(kind), OutcomeGranted)
	s.log.Info("ledger.unlock.ok", "account_id", accountID, "kind", kind, "item", key)
	return a, nil
}

func (s *Service) vanished(op string, accountID int64, kind identity.ItemKind, key string) error {
	s.rec.Grant(string(kind), OutcomeVanished)
	s.log.Warn("ledger.unlock.account_vanished", "account_id", accountID, "kind", kind, "item", key)
	return fault.NotFound(op, ErrAccountVanished)
}

// SetActiveItem activates an owned costume, or catalog.DefaultItem.
func (s *Service) SetActiveItem(ctx context.Context, accountID int64, key string) (identity.Account, error) {
	const op = "ledger.SetActiveItem"

	if key != catalog.DefaultItem {
		if _, ok := s.catalog.Costume(key); !ok {
			return identity.Account{}, fault.Validation(op, ErrUnknownCostume)
		}

		a, err := s.store.FindAccountByID(ctx, accountID)
		if err != nil {
			if identity.IsNotFound(err) {
				return identity.Account{}, fault.NotFound(op, ErrAccountVanished)
			}
			return identity.Account{}, s.internal(op, accountID, err)
		}
		if !owns(a.Costumes, key) {
			return identity.Account{}, fault.Validation(op, ErrNotOwned)
		}
	}

	mctx, cancel := s.mutationContext(ctx)
	defer cancel()

	a, err := s.store.UpdateActiveItem(mctx, accountID, key)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Account{}, fault.NotFound(op, ErrAccountVanished)
		}
		return identity.Account{}, s.internal(op, accountID, err)
	}
	return a, nil
}

func owns(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// OwnedCostumes decodes the account's costume keys (plus the default) into catalog items.
// A stored key that the catalog no longer defines is reported as NotFound.
func (s *Service) OwnedCostumes(ctx context.Context, accountID int64) ([]catalog.Item, error) {
	const op = "ledger.OwnedCostumes"

	a, err := s.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(a.Costumes)+1)
	keys = append(keys, catalog.DefaultItem)
	for _, k := range a.Costumes {
		if k != catalog.DefaultItem {
			keys = append(keys, k)
		}
	}

	items, err := s.catalog.ResolveCostumes(keys)
	if err != nil {
		s.log.Warn("ledger.costumes.retired_item", "account_id", accountID, "err", err)
		return nil, fault.NotFound(op, ErrRetiredItem)
	}
	return items, nil
}

// DeleteAccount removes scores, grants and the account as one unit.
func (s *Service) DeleteAccount(ctx context.Context, accountID int64) (identity.Account, error) {
	const op = "ledger.DeleteAccount"

	mctx, cancel := s.mutationContext(ctx)
	defer cancel()

	a, err := s.store.DeleteAccount(mctx, accountID)
	switch {
	case err == nil:
		s.log.Info("ledger.account.deleted", "account_id", accountID)
		return a, nil
	case identity.IsNotFound(err):
		return identity.Account{}, fault.NotFound(op, ErrAccountNotFound)
	case identity.IsDeleteIncomplete(err):
		s.log.Error("ledger.account.delete_incomplete", "account_id", accountID, "err", err)
		return identity.Account{}, fault.InternalPublic(op, err, ErrDeleteIncomplete.Error())
	default:
		return identity.Account{}, s.internal(op, accountID, err)
	}
}

func (s *Service) internal(op string, accountID int64, err error) error {
	s.log.Error("ledger.store.fail", "op", op, "account_id", accountID, "err", err)
	return fault.Internal(op, err)
}
