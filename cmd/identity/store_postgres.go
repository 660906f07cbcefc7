package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store never closes it.
// Schema/table identifiers are quoted with pgx.Identifier.
// Grants and deletes serialize on the account row via SELECT ... FOR UPDATE.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultSchema is created by the bundled migrations.
const DefaultSchema = "wardrobe"

// WithSchema sets the Postgres schema (default "wardrobe").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) tables() (accounts, scores, items string) {
	return pgIdent(s.schema, "accounts"), pgIdent(s.schema, "scores"), pgIdent(s.schema, "account_items")
}

func (s *PostgresStore) begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
}

// loadAccount reads an account with its granted items.
func (s *PostgresStore) loadAccount(ctx context.Context, q queryRower, op string, id int64) (Account, error) {
	accounts, _, items := s.tables()

	var a Account
	err := q.QueryRow(ctx,
		`SELECT a.id, a.username, a.nickname, a.active_item, a.created_at,
		        COALESCE(array_agg(i.item_key ORDER BY i.item_key) FILTER (WHERE i.kind = 'costume'), '{}'),
		        COALESCE(array_agg(i.item_key ORDER BY i.item_key) FILTER (WHERE i.kind = 'achievement'), '{}')
		   FROM `+accounts+` a
		   LEFT JOIN `+items+` i ON i.account_id = a.id
		  WHERE a.id = $1
		  GROUP BY a.id`,
		id,
	).Scan(&a.ID, &a.Username, &a.Nickname, &a.ActiveItem, &a.CreatedAt, &a.Costumes, &a.Achievements)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, accountNotFound(op)
		}
		return Account{}, err
	}
	return a, nil
}

// lockAccount takes the per-account row lock for the rest of tx.
func (s *PostgresStore) lockAccount(ctx context.Context, tx pgx.Tx, op string, id int64) error {
	accounts, _, _ := s.tables()

	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM `+accounts+` WHERE id = $1 FOR UPDATE`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accountNotFound(op)
		}
		return err
	}
	return nil
}

// FindAccountByID returns the account or ErrNotFound.
func (s *PostgresStore) FindAccountByID(ctx context.Context, id int64) (Account, error) {
	return s.loadAccount(ctx, s.pool, "identity.FindAccountByID", id)
}

// FindAccountByUsername looks up by normalized username and includes the password hash.
func (s *PostgresStore) FindAccountByUsername(ctx context.Context, username string) (AccountAuth, error) {
	const op = "identity.FindAccountByUsername"

	norm := NormalizeUsername(username)
	if norm == "" {
		return AccountAuth{}, pgInvalid(op, "username is required")
	}

	accounts, _, _ := s.tables()

	var (
		id   int64
		hash string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, password_hash FROM `+accounts+` WHERE username_norm = $1`,
		norm,
	).Scan(&id, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountAuth{}, accountNotFound(op)
		}
		return AccountAuth{}, err
	}

	a, err := s.loadAccount(ctx, s.pool, op, id)
	if err != nil {
		return AccountAuth{}, err
	}
	return AccountAuth{Account: a, PasswordHash: hash}, nil
}

// AccountExists is the cheap existence probe used on every authenticated request.
func (s *PostgresStore) AccountExists(ctx context.Context, id int64) (bool, error) {
	accounts, _, _ := s.tables()

	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+accounts+` WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// InsertAccount creates an account with DefaultActiveItem active and no grants.
func (s *PostgresStore) InsertAccount(ctx context.Context, in NewAccount) (Account, error) {
	const op = "identity.InsertAccount"

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

	accounts, _, _ := s.tables()

	a := Account{
		Username:     username,
		Nickname:     strings.TrimSpace(in.Nickname),
		ActiveItem:   DefaultActiveItem,
		Costumes:     []string{},
		Achievements: []string{},
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+accounts+` (username, username_norm, nickname, password_hash, active_item, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		a.Username, NormalizeUsername(username), a.Nickname, in.PasswordHash, a.ActiveItem, now,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: field}
		}
		return Account{}, err
	}
	return a, nil
}

// DeleteAccount removes scores, then the account (granted items cascade), in one transaction.
func (s *PostgresStore) DeleteAccount(ctx context.Context, id int64) (Account, error) {
	const op = "identity.DeleteAccount"

	tx, err := s.begin(ctx)
	if err != nil {
		return Account{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockAccount(ctx, tx, op, id); err != nil {
		return Account{}, err
	}
	a, err := s.loadAccount(ctx, tx, op, id)
	if err != nil {
		return Account{}, err
	}

	accounts, scores, _ := s.tables()

	if _, err := tx.Exec(ctx, `DELETE FROM `+scores+` WHERE account_id = $1`, id); err != nil {
		return Account{}, fmt.Errorf("%s: delete scores: %w", op, err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM `+accounts+` WHERE id = $1`, id)
	if err != nil {
		return Account{}, OpError{Op: op, Kind: ErrDeleteIncomplete, Msg: "scores removed, account not", Err: err}
	}
	if tag.RowsAffected() != 1 {
		return Account{}, OpError{Op: op, Kind: ErrDeleteIncomplete, Msg: "account row missing after scores removed"}
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, OpError{Op: op, Kind: ErrDeleteIncomplete, Msg: "commit", Err: err}
	}
	return a, nil
}

// SumStars returns the total stars over all of the account's scores (0 when none).
// A missing account yields ErrNotFound.
func (s *PostgresStore) SumStars(ctx context.Context, accountID int64) (int64, error) {
	accounts, scores, _ := s.tables()

	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(sc.stars), 0)::BIGINT
		   FROM `+accounts+` a
		   LEFT JOIN `+scores+` sc ON sc.account_id = a.id
		  WHERE a.id = $1
		  GROUP BY a.id`,
		accountID,
	).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, accountNotFound("identity.SumStars")
		}
		return 0, err
	}
	return total, nil
}

// InsertScore appends a score. A missing account yields ErrNotFound.
func (s *PostgresStore) InsertScore(ctx context.Context, in NewScore) (Score, error) {
	const op = "identity.InsertScore"

	if in.Stars < 0 {
		return Score{}, pgInvalid(op, "stars must be non-negative")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, scores, _ := s.tables()

	out := Score{AccountID: in.AccountID, Stars: in.Stars, Score: in.Score}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+scores+` (account_id, stars, score, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		in.AccountID, in.Stars, in.Score, now,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		if pgIsForeignKeyViolation(err) {
			return Score{}, accountNotFound(op)
		}
		return Score{}, err
	}
	return out, nil
}

// ListScores pages through scores ordered by id.
func (s *PostgresStore) ListScores(ctx context.Context, q ScoreQuery) ([]Score, error) {
	_, scores, _ := s.tables()

	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, stars, score, created_at
		   FROM `+scores+`
		  WHERE ($1::BIGINT IS NULL OR account_id = $1)
		  ORDER BY id
		  LIMIT $2 OFFSET $3`,
		q.AccountID, q.Limit, q.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Score{}
	for rows.Next() {
		var sc Score
		if err := rows.Scan(&sc.ID, &sc.AccountID, &sc.Stars, &sc.Score, &sc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// MergeUnlockedItem adds key to the account's set of kind under the account row lock.
func (s *PostgresStore) MergeUnlockedItem(ctx context.Context, accountID int64, kind ItemKind, key string) (Account, error) {
	const op = "identity.MergeUnlockedItem"

	if !kind.Valid() {
		return Account{}, pgInvalid(op, "unknown item kind")
	}
	if strings.TrimSpace(key) == "" {
		return Account{}, pgInvalid(op, "item key is required")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return Account{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockAccount(ctx, tx, op, accountID); err != nil {
		return Account{}, err
	}

	_, _, items := s.tables()
	_, err = tx.Exec(ctx,
		`INSERT INTO `+items+` (account_id, kind, item_key, granted_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (account_id, kind, item_key) DO NOTHING`,
		accountID, string(kind), key,
	)
	if err != nil {
		if pgIsForeignKeyViolation(err) {
			return Account{}, accountNotFound(op)
		}
		return Account{}, err
	}

	a, err := s.loadAccount(ctx, tx, op, accountID)
	if err != nil {
		return Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Account{}, err
	}
	return a, nil
}

// UpdateActiveItem sets the active item. Ownership is the caller's concern.
func (s *PostgresStore) UpdateActiveItem(ctx context.Context, accountID int64, key string) (Account, error) {
	const op = "identity.UpdateActiveItem"

	tx, err := s.begin(ctx)
	if err != nil {
		return Account{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	accounts, _, _ := s.tables()
	tag, err := tx.Exec(ctx, `UPDATE `+accounts+` SET active_item = $2 WHERE id = $1`, accountID, key)
	if err != nil {
		return Account{}, err
	}
	if tag.RowsAffected() == 0 {
		return Account{}, accountNotFound(op)
	}

	a, err := s.loadAccount(ctx, tx, op, accountID)
	if err != nil {
		return Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Account{}, err
	}
	return a, nil
}

// Ping acquires a pooled connection to prove the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgIsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" // foreign_key_violation
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_accounts_username_norm", strings.Contains(c, "username"):
		return "username", true
	default:
		return "unique", true
	}
}
