package balance

import "context"

// Balance is a user's net position across all receipts: the sum of open
// amounts on entries where they are debtor or creditor. Obligations are
// intentionally not netted against each other; each receipt's ledger
// stands alone.
type Balance struct {
	UserID      int64 `json:"user_id"`
	OwesCents   int64 `json:"owes_cents"`
	IsOwedCents int64 `json:"is_owed_cents"`
	NetCents    int64 `json:"net_cents"`
}

// Source aggregates open ledger amounts per user. Implemented by
// ledger.Repository.
type Source interface {
	BalanceOf(ctx context.Context, userID int64) (owes, isOwed int64, err error)
}

// Service composes ledger aggregates into the user-facing balance view
type Service struct {
	source Source
}

// NewService creates a new balance service
func NewService(source Source) *Service {
	return &Service{source: source}
}

// Balance returns the user's outstanding position
func (s *Service) Balance(ctx context.Context, userID int64) (*Balance, error) {
	owes, isOwed, err := s.source.BalanceOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Balance{
		UserID:      userID,
		OwesCents:   owes,
		IsOwedCents: isOwed,
		NetCents:    isOwed - owes,
	}, nil
}
