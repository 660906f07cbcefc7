package identity

import (
	"context"
	"time"
)

// DefaultActiveItem is the active item of a freshly registered account.
const DefaultActiveItem = "default"

// ItemKind partitions granted items.
type ItemKind string

const (
	ItemCostume     ItemKind = "costume"
	ItemAchievement ItemKind = "achievement"
)

// Valid reports whether k is a known kind.
func (k ItemKind) Valid() bool { return k == ItemCostume || k == ItemAchievement }

// Account is the public view of an account. It never carries the password hash.
type Account struct {
	ID         int64
	Username   string
	Nickname   string
	ActiveItem string

	// Granted keys sorted ascending. Neither set ever shrinks.
	Costumes     []string
	Achievements []string

	CreatedAt time.Time
}

// AccountAuth pairs an account with its stored password hash for login.
type AccountAuth struct {
	Account      Account
	PasswordHash string
}

// NewAccount describes a registration. PasswordHash is already derived.
type NewAccount struct {
	Username     string
	Nickname     string
	PasswordHash string
	Now          time.Time
}

// Score is one append-only score submission.
type Score struct {
	ID        int64
	AccountID int64
	Stars     int32
	Score     int32
	CreatedAt time.Time
}

// NewScore describes a score submission. Stars must be non-negative.
type NewScore struct {
	AccountID int64
	Stars     int32
	Score     int32
	Now       time.Time
}

// ScoreQuery filters ListScores. A nil AccountID lists every account.
type ScoreQuery struct {
	AccountID *int64
	Offset    int64
	Limit     int64
}

// Store is the credential store boundary.
//
// Contract:
//   - MergeUnlockedItem is an atomic set union: granting an owned item is a no-op,
//     concurrent grants never lose each other, and a grant against a missing or
//     concurrently deleted account fails with ErrNotFound without leaving a row behind.
//   - DeleteAccount removes the account's scores and then the account as one unit.
//     If the account removal fails after the scores were removed it returns ErrDeleteIncomplete.
//   - SumStars of a missing account fails with ErrNotFound rather than reporting zero.
type Store interface {
	FindAccountByID(ctx context.Context, id int64) (Account, error)
	FindAccountByUsername(ctx context.Context, username string) (AccountAuth, error)
	AccountExists(ctx context.Context, id int64) (bool, error)

	InsertAccount(ctx context.Context, in NewAccount) (Account, error)
	DeleteAccount(ctx context.Context, id int64) (Account, error)

	SumStars(ctx context.Context, accountID int64) (int64, error)
	InsertScore(ctx context.Context, in NewScore) (Score, error)
	ListScores(ctx context.Context, q ScoreQuery) ([]Score, error)

	MergeUnlockedItem(ctx context.Context, accountID int64, kind ItemKind, key string) (Account, error)
	UpdateActiveItem(ctx context.Context, accountID int64, key string) (Account, error)

	Ping(ctx context.Context) error
}
