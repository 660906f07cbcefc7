package ledger

import (
	"context"

	"wardrobe/cmd/identity"
	"wardrobe/cmd/internal/fault"
)

// ScoreFilter selects a page of scores. AccountID wins over Username when both are set.
type ScoreFilter struct {
	Offset    int64
	Limit     *int64
	Username  string
	AccountID *int64
}

// SubmitScore appends a score record; its stars add to the account balance.
func (s *Service) SubmitScore(ctx context.Context, accountID int64, stars, score int32) (identity.Score, error) {
	const op = "ledger.SubmitScore"

	if stars < 0 {
		return identity.Score{}, fault.Validation(op, ErrNegativeStars)
	}

	mctx, cancel := s.mutationContext(ctx)
	defer cancel()

	sc, err := s.store.InsertScore(mctx, identity.NewScore{
		AccountID: accountID,
		Stars:     stars,
		Score:     score,
	})
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Score{}, fault.NotFound(op, ErrAccountVanished)
		}
		return identity.Score{}, s.internal(op, accountID, err)
	}
	return sc, nil
}

// Scores lists scores. Negative offset and limit are taken by absolute value,
// the limit defaults to 100 and is capped. An unknown username yields an empty page.
func (s *Service) Scores(ctx context.Context, f ScoreFilter) ([]identity.Score, error) {
	const op = "ledger.Scores"

	q := identity.ScoreQuery{
		Offset:    abs64(f.Offset),
		Limit:     defaultScoreLimit,
		AccountID: f.AccountID,
	}
	if f.Limit != nil {
		q.Limit = abs64(*f.Limit)
	}
	if q.Limit > s.maxScoreLimit {
		q.Limit = s.maxScoreLimit
	}

	if q.AccountID == nil && f.Username != "" {
		auth, err := s.store.FindAccountByUsername(ctx, f.Username)
		if err != nil {
			if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
				return []identity.Score{}, nil
			}
			return nil, fault.Internal(op, err)
		}
		id := auth.Account.ID
		q.AccountID = &id
	}

	out, err := s.store.ListScores(ctx, q)
	if err != nil {
		s.log.Error("ledger.scores.fail", "err", err)
		return nil, fault.Internal(op, err)
	}
	return out, nil
}

func abs64(v int64) int64 {
	if v < 0 {
		v = -v
	}
	if v < 0 {
		return 0
	}
	return v
}
