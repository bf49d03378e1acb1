package escrow

import (
	"context"

	"github.com/google/uuid"
)

type WalletRepository interface {
	Create(ctx context.Context, w *Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error)
	GetByAddress(ctx context.Context, address string) (*Wallet, error)
	// GetByAddressForUpdate loads a wallet with a row lock so a concurrent
	// transaction cannot read the balance until the current one commits.
	GetByAddressForUpdate(ctx context.Context, address string) (*Wallet, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, balance float64) error
}

type TransactionRepository interface {
	Append(ctx context.Context, t *Transaction) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*Transaction, int, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Transaction, error)
}
