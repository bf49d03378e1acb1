package escrow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	wallets      WalletRepository
	txs          TransactionRepository
	startBalance float64
}

// NewService builds the wallet-session service. startBalance seeds newly
// connected wallets, standing in for the funds a real rail would report.
func NewService(wallets WalletRepository, txs TransactionRepository, startBalance float64) *Service {
	return &Service{wallets: wallets, txs: txs, startBalance: startBalance}
}

// Connect returns the wallet for address, creating it with the configured
// starting balance on first connect. Connecting twice is harmless.
func (s *Service) Connect(ctx context.Context, address string) (*Wallet, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}

	if w, err := s.wallets.GetByAddress(ctx, address); err == nil {
		return w, nil
	}

	w := &Wallet{Address: address, Balance: s.startBalance}
	if err := s.wallets.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return w, nil
}

func (s *Service) GetWallet(ctx context.Context, address string) (*Wallet, error) {
	w, err := s.wallets.GetByAddress(ctx, address)
	if err != nil {
		return nil, ErrWalletNotFound
	}
	return w, nil
}

func (s *Service) ListTransactions(ctx context.Context, address string, limit, offset int) ([]*Transaction, int, error) {
	w, err := s.wallets.GetByAddress(ctx, address)
	if err != nil {
		return nil, 0, ErrWalletNotFound
	}
	return s.txs.ListByWallet(ctx, w.ID, limit, offset)
}

// ListOrderTransactions returns the ledger's record for one order, oldest
// first. This is the read reconciliation builds on: the log is the ground
// truth for which financial effects were actually applied.
func (s *Service) ListOrderTransactions(ctx context.Context, orderID uuid.UUID) ([]*Transaction, error) {
	return s.txs.ListByOrder(ctx, orderID)
}
