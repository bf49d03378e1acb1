package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediport/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Wallet Repository ===========

type walletRepoPG struct{ pool *pgxpool.Pool }

func NewWalletRepoPG(pool *pgxpool.Pool) WalletRepository { return &walletRepoPG{pool: pool} }

func (r *walletRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const walletCols = `id, address, balance, created_at, updated_at`

func (r *walletRepoPG) scanWallet(row pgx.Row) (*Wallet, error) {
	var w Wallet
	err := row.Scan(&w.ID, &w.Address, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	return &w, err
}

func (r *walletRepoPG) Create(ctx context.Context, w *Wallet) error {
	w.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO wallet (id, address, balance)
		VALUES ($1, $2, $3)`,
		w.ID, w.Address, w.Balance)
	return err
}

func (r *walletRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	return r.scanWallet(r.conn(ctx).QueryRow(ctx, `SELECT `+walletCols+` FROM wallet WHERE id = $1`, id))
}

func (r *walletRepoPG) GetByAddress(ctx context.Context, address string) (*Wallet, error) {
	return r.scanWallet(r.conn(ctx).QueryRow(ctx, `SELECT `+walletCols+` FROM wallet WHERE address = $1`, address))
}

func (r *walletRepoPG) GetByAddressForUpdate(ctx context.Context, address string) (*Wallet, error) {
	return r.scanWallet(r.conn(ctx).QueryRow(ctx, `SELECT `+walletCols+` FROM wallet WHERE address = $1 FOR UPDATE`, address))
}

func (r *walletRepoPG) UpdateBalance(ctx context.Context, id uuid.UUID, balance float64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE wallet SET balance = $2, updated_at = NOW() WHERE id = $1`,
		id, balance)
	return err
}

// =========== Transaction Repository ===========

type transactionRepoPG struct{ pool *pgxpool.Pool }

func NewTransactionRepoPG(pool *pgxpool.Pool) TransactionRepository {
	return &transactionRepoPG{pool: pool}
}

func (r *transactionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const txCols = `id, wallet_id, order_id, kind, amount, created_at`

func (r *transactionRepoPG) scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.WalletID, &t.OrderID, &t.Kind, &t.Amount, &t.CreatedAt)
	return &t, err
}

func (r *transactionRepoPG) Append(ctx context.Context, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO escrow_transaction (id, wallet_id, order_id, kind, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.WalletID, t.OrderID, t.Kind, t.Amount, t.CreatedAt)
	return err
}

func (r *transactionRepoPG) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM escrow_transaction WHERE wallet_id = $1`, walletID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+txCols+` FROM escrow_transaction WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, walletID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}

func (r *transactionRepoPG) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Transaction, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+txCols+` FROM escrow_transaction WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, nil
}
