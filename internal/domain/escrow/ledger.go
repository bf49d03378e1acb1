package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInsufficientBalance is returned by Lock when the wallet cannot cover
	// the requested amount. No balance change or transaction is recorded.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrRailUnavailable is returned when the simulated payment rail drops an
	// operation. The operation is guaranteed not to have been applied.
	ErrRailUnavailable = errors.New("escrow rail unavailable")

	// ErrWalletNotFound is returned for operations against an unknown address.
	ErrWalletNotFound = errors.New("wallet not found")
)

// Ledger owns a wallet balance and its append-only transaction log. Operations
// are serialized per wallet: at most one mutation is in flight for a given
// address at any time. None of the mutating operations is idempotent. Every
// successful call appends a new transaction and moves the balance again, so
// the caller owns exactly-once invocation per order transition.
type Ledger interface {
	// Lock places amount in escrow: the balance decreases and a lock
	// transaction is appended. Fails with ErrInsufficientBalance when the
	// wallet cannot cover amount.
	Lock(ctx context.Context, address string, orderID uuid.UUID, amount float64) (*Transaction, error)

	// Release hands the locked amount to the counterparty. The caller's own
	// balance does not change; only a release transaction is appended.
	Release(ctx context.Context, address string, orderID uuid.UUID, amount float64) (*Transaction, error)

	// Refund credits amount back to the wallet and appends a refund transaction.
	Refund(ctx context.Context, address string, orderID uuid.UUID, amount float64) (*Transaction, error)

	// ApplyPenalty records an already-computed penalty/refund split: the
	// refund part is credited to the wallet and one penalty transaction is
	// appended recording the forfeited part.
	ApplyPenalty(ctx context.Context, address string, orderID uuid.UUID, penalty, refund float64) (*Transaction, error)

	// ChargePenalty computes the penalty split of lockedAmount at PenaltyRate
	// and applies it. This is the one operation that embeds the rate; callers
	// that captured a rate themselves must use ApplyPenalty instead so the
	// rate is never applied twice.
	ChargePenalty(ctx context.Context, address string, orderID uuid.UUID, lockedAmount float64) (PenaltySplit, *Transaction, error)

	// Balance reads the wallet's current balance.
	Balance(ctx context.Context, address string) (float64, error)
}

// TxRunner runs a function inside one atomic storage transaction. The pgx pool
// satisfies it through db.Runner; tests substitute a pass-through.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Config tunes the simulated rail behavior of the ledger.
type Config struct {
	// Latency is the simulated network/chain delay imposed on every operation.
	Latency time.Duration
	// FailureRate is the probability in [0,1) that an operation fails with
	// ErrRailUnavailable before touching storage.
	FailureRate float64
	// OpTimeout bounds each operation; an elapsed timeout is reported as a
	// failure and guarantees no mutation happened.
	OpTimeout time.Duration
}

type ledger struct {
	wallets WalletRepository
	txs     TransactionRepository
	runner  TxRunner
	cfg     Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	rnd   *rand.Rand
}

// NewLedger builds a Ledger over the given repositories. A zero Config
// disables latency and failure injection.
func NewLedger(wallets WalletRepository, txs TransactionRepository, runner TxRunner, cfg Config) Ledger {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	return &ledger{
		wallets: wallets,
		txs:     txs,
		runner:  runner,
		cfg:     cfg,
		locks:   make(map[string]*sync.Mutex),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// walletMu returns the mutex serializing mutations for one wallet address.
func (l *ledger) walletMu(address string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.locks[address]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[address] = mu
	}
	return mu
}

// simulateRail imposes the configured latency and failure rate. It returns an
// error before any storage is touched, so a failed rail call never mutates.
func (l *ledger) simulateRail(ctx context.Context) error {
	if l.cfg.Latency > 0 {
		timer := time.NewTimer(l.cfg.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("escrow operation timed out: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if l.cfg.FailureRate > 0 {
		l.mu.Lock()
		roll := l.rnd.Float64()
		l.mu.Unlock()
		if roll < l.cfg.FailureRate {
			return ErrRailUnavailable
		}
	}
	return nil
}

// mutate runs one serialized ledger mutation: delta is applied to the balance
// and a transaction of the given kind is appended, atomically.
func (l *ledger) mutate(ctx context.Context, address string, orderID uuid.UUID, kind Kind, amount, delta float64) (*Transaction, error) {
	if amount < 0 {
		return nil, fmt.Errorf("negative amount %.2f", amount)
	}

	mu := l.walletMu(address)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.cfg.OpTimeout)
	defer cancel()

	if err := l.simulateRail(ctx); err != nil {
		return nil, err
	}

	var rec *Transaction
	err := l.runner.InTx(ctx, func(ctx context.Context) error {
		w, err := l.wallets.GetByAddressForUpdate(ctx, address)
		if err != nil {
			return ErrWalletNotFound
		}

		if kind == KindLock && amount > w.Balance {
			return ErrInsufficientBalance
		}

		if delta != 0 {
			if err := l.wallets.UpdateBalance(ctx, w.ID, w.Balance+delta); err != nil {
				return fmt.Errorf("update balance: %w", err)
			}
		}

		oid := orderID
		rec = &Transaction{
			ID:        uuid.New(),
			WalletID:  w.ID,
			OrderID:   &oid,
			Kind:      kind,
			Amount:    amount,
			CreatedAt: time.Now().UTC(),
		}
		if err := l.txs.Append(ctx, rec); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (l *ledger) Lock(ctx context.Context, address string, orderID uuid.UUID, amount float64) (*Transaction, error) {
	return l.mutate(ctx, address, orderID, KindLock, amount, -amount)
}

func (l *ledger) Release(ctx context.Context, address string, orderID uuid.UUID, amount float64) (*Transaction, error) {
	// Funds move to the counterparty pharmacy, which is outside this ledger:
	// the caller's balance stays put.
	return l.mutate(ctx, address, orderID, KindRelease, amount, 0)
}

func (l *ledger) Refund(ctx context.Context, address string, orderID uuid.UUID, amount float64) (*Transaction, error) {
	return l.mutate(ctx, address, orderID, KindRefund, amount, amount)
}

func (l *ledger) ApplyPenalty(ctx context.Context, address string, orderID uuid.UUID, penalty, refund float64) (*Transaction, error) {
	// One penalty transaction records the forfeited part; the refunded part
	// is the balance delta. The refund portion is not separately recorded.
	return l.mutate(ctx, address, orderID, KindPenalty, penalty, refund)
}

func (l *ledger) ChargePenalty(ctx context.Context, address string, orderID uuid.UUID, lockedAmount float64) (PenaltySplit, *Transaction, error) {
	split := SplitPenalty(lockedAmount, PenaltyRate)
	rec, err := l.ApplyPenalty(ctx, address, orderID, split.Penalty, split.Refund)
	if err != nil {
		return PenaltySplit{}, nil, err
	}
	return split, rec, nil
}

func (l *ledger) Balance(ctx context.Context, address string) (float64, error) {
	w, err := l.wallets.GetByAddress(ctx, address)
	if err != nil {
		return 0, ErrWalletNotFound
	}
	return w.Balance, nil
}
