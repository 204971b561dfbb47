package models

import "time"

// UserBudget is a user's remaining metered allowance. Unlimited users are
// never debited.
type UserBudget struct {
	UserID    string `json:"user_id"`
	Remaining int64  `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
}

// UsageEntry is an immutable debit against a user's budget, written when a
// generation request is accepted.
type UsageEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
