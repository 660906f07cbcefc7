package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development mode and tests.
// A single mutex serializes every operation, which makes grants trivially linearizable.
type MemoryStore struct {
	mu sync.Mutex

	nextAccountID int64
	nextScoreID   int64

	accounts map[int64]*memAccount
	byNorm   map[string]int64
	scores   []Score
}

type memAccount struct {
	account Account
	hash    string
	items   map[ItemKind]map[string]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[int64]*memAccount),
		byNorm:   make(map[string]int64),
	}
}

func (m *memAccount) snapshot() Account {
	a := m.account
	a.Costumes = sortedKeys(m.items[ItemCostume])
	a.Achievements = sortedKeys(m.items[ItemAchievement])
	return a
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *MemoryStore) FindAccountByID(ctx context.Context, id int64) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.accounts[id]
	if !ok {
		return Account{}, accountNotFound("identity.FindAccountByID")
	}
	return m.snapshot(), nil
}

func (s *MemoryStore) FindAccountByUsername(ctx context.Context, username string) (AccountAuth, error) {
	const op = "identity.FindAccountByUsername"

	if err := ctx.Err(); err != nil {
		return AccountAuth{}, err
	}
	norm := NormalizeUsername(username)
	if norm == "" {
		return AccountAuth{}, pgInvalid(op, "username is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byNorm[norm]
	if !ok {
		return AccountAuth{}, accountNotFound(op)
	}
	m := s.accounts[id]
	return AccountAuth{Account: m.snapshot(), PasswordHash: m.hash}, nil
}

func (s *MemoryStore) AccountExists(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.accounts[id]
	return ok, nil
}

func (s *MemoryStore) InsertAccount(ctx context.Context, in NewAccount) (Account, error) {
	const op = "identity.InsertAccount"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return Account{}, pgInvalid(op, "username is required")
	}
	if in.PasswordHash == "" {
		return Account{}, pgInvalid(op, "password hash is required")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	norm := NormalizeUsername(username)
	if _, taken := s.byNorm[norm]; taken {
		return Account{}, ConflictError{Op: op, Field: "username"}
	}

	s.nextAccountID++
	m := &memAccount{
		account: Account{
			ID:         s.nextAccountID,
			Username:   username,
			Nickname:   strings.TrimSpace(in.Nickname),
			ActiveItem: DefaultActiveItem,
			CreatedAt:  now,
		},
		hash: in.PasswordHash,
		items: map[ItemKind]map[string]struct{}{
			ItemCostume:     {},
			ItemAchievement: {},
		},
	}
	s.accounts[m.account.ID] = m
	s.byNorm[norm] = m.account.ID
	return m.snapshot(), nil
}

func (s *MemoryStore) DeleteAccount(ctx context.Context, id int64) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.accounts[id]
	if !ok {
		return Account{}, accountNotFound("identity.DeleteAccount")
	}

	kept := s.scores[:0]
	for _, sc := range s.scores {
		if sc.AccountID != id {
			kept = append(kept, sc)
		}
	}
	s.scores = kept

	delete(s.byNorm, NormalizeUsername(m.account.Username))
	delete(s.accounts, id)
	return m.snapshot(), nil
}

func (s *MemoryStore) SumStars(ctx context.Context, accountID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return 0, accountNotFound("identity.SumStars")
	}

	var total int64
	for _, sc := range s.scores {
		if sc.AccountID == accountID {
			total += int64(sc.Stars)
		}
	}
	return total, nil
}

func (s *MemoryStore) InsertScore(ctx context.Context, in NewScore) (Score, error) {
	const op = "identity.InsertScore"

	if err := ctx.Err(); err != nil {
		return Score{}, err
	}
	if in.Stars < 0 {
		return Score{}, pgInvalid(op, "stars must be non-negative")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[in.AccountID]; !ok {
		return Score{}, accountNotFound(op)
	}
	s.nextScoreID++
	sc := Score{
		ID:        s.nextScoreID,
		AccountID: in.AccountID,
		Stars:     in.Stars,
		Score:     in.Score,
		CreatedAt: now,
	}
	s.scores = append(s.scores, sc)
	return sc, nil
}

func (s *MemoryStore) ListScores(ctx context.Context, q ScoreQuery) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Score{}
	var skipped int64
	for _, sc := range s.scores {
		if q.AccountID != nil && sc.AccountID != *q.AccountID {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		if int64(len(out)) >= q.Limit {
			break
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *MemoryStore) MergeUnlockedItem(ctx context.Context, accountID int64, kind ItemKind, key string) (Account, error) {
	const op = "identity.MergeUnlockedItem"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if !kind.Valid() {
		return Account{}, pgInvalid(op, "unknown item kind")
	}
	if strings.TrimSpace(key) == "" {
		return Account{}, pgInvalid(op, "item key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.accounts[accountID]
	if !ok {
		return Account{}, accountNotFound(op)
	}
	m.items[kind][key] = struct{}{}
	return m.snapshot(), nil
}

func (s *MemoryStore) UpdateActiveItem(ctx context.Context, accountID int64, key string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.accounts[accountID]
	if !ok {
		return Account{}, accountNotFound("identity.UpdateActiveItem")
	}
	m.account.ActiveItem = key
	return m.snapshot(), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }
