package store

import (
	"context"

	"kinlink/internal/family/models"
	id "kinlink/pkg/domain"
)

// AccountWriter is the slice of the account store seeding needs.
type AccountWriter interface {
	Put(ctx context.Context, account *models.Account) error
}

// SeedDemoAccounts creates two well-known accounts for local development so
// tokens minted against their ids resolve immediately.
func SeedDemoAccounts(ctx context.Context, accounts AccountWriter) ([]*models.Account, error) {
	demo := []*models.Account{
		{
			ID:          id.MustParseAccountID("11111111-1111-1111-1111-111111111111"),
			Name:        "Priya Sharma",
			Email:       "priya.sharma@gmail.com",
			PhoneNumber: "+919800000001",
		},
		{
			ID:          id.MustParseAccountID("22222222-2222-2222-2222-222222222222"),
			Name:        "Rahul Verma",
			Email:       "rahul.verma@gmail.com",
			PhoneNumber: "+919800000002",
		},
	}
	for _, account := range demo {
		if err := accounts.Put(ctx, account); err != nil {
			return nil, err
		}
	}
	return demo, nil
}
