package api

import (
	"wardrobe/cmd/identity"
)

func toAccountResponse(a identity.Account) accountResponse {
	unlocked := a.Costumes
	if unlocked == nil {
		unlocked = []string{}
	}
	achievements := a.Achievements
	if achievements == nil {
		achievements = []string{}
	}
	return accountResponse{
		ID:            a.ID,
		Username:      a.Username,
		Nickname:      a.Nickname,
		ActiveItem:    a.ActiveItem,
		UnlockedItems: unlocked,
		Achievements:  achievements,
		CreatedAt:     a.CreatedAt,
	}
}

func toScoreResponses(in []identity.Score) []scoreResponse {
	out := make([]scoreResponse, 0, len(in))
	for _, sc := range in {
		out = append(out, scoreResponse{
			ID:        sc.ID,
			AccountID: sc.AccountID,
			NumStars:  sc.Stars,
			Score:     sc.Score,
			CreatedAt: sc.CreatedAt,
		})
	}
	return out
}
