package order

import (
	"context"
	"strconv"
	"time"

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

type orderRepoPG struct{ pool *pgxpool.Pool }

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository { return &orderRepoPG{pool: pool} }

func (r *orderRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const orderCols = `id, status, items, pharmacy, customer_id, customer_phone,
	total_amount, delivery_fee, total_with_delivery,
	wallet_address, escrow_locked_amount, escrow_transaction_id, escrow_status,
	collection_deadline, refund_amount, penalty_amount, penalty_rate,
	order_date, preparing_started_at, out_for_delivery_at, delivered_at,
	cancelled_at, no_show_at, escrow_released_at, created_at, updated_at`

func (r *orderRepoPG) scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Status, &o.Items, &o.Pharmacy, &o.CustomerID, &o.CustomerPhone,
		&o.TotalAmount, &o.DeliveryFee, &o.TotalWithDelivery,
		&o.WalletAddress, &o.EscrowLockedAmount, &o.EscrowTransactionID, &o.EscrowStatus,
		&o.CollectionDeadline, &o.RefundAmount, &o.PenaltyAmount, &o.PenaltyRate,
		&o.OrderDate, &o.PreparingStartedAt, &o.OutForDeliveryAt, &o.DeliveredAt,
		&o.CancelledAt, &o.NoShowAt, &o.EscrowReleasedAt, &o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func (r *orderRepoPG) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medicine_order (id, status, items, pharmacy, customer_id, customer_phone,
			total_amount, delivery_fee, total_with_delivery,
			wallet_address, escrow_locked_amount, escrow_transaction_id, escrow_status,
			collection_deadline, refund_amount, penalty_amount, penalty_rate, order_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		o.ID, o.Status, o.Items, o.Pharmacy, o.CustomerID, o.CustomerPhone,
		o.TotalAmount, o.DeliveryFee, o.TotalWithDelivery,
		o.WalletAddress, o.EscrowLockedAmount, o.EscrowTransactionID, o.EscrowStatus,
		o.CollectionDeadline, o.RefundAmount, o.PenaltyAmount, o.PenaltyRate, o.OrderDate)
	return err
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM medicine_order WHERE id = $1`, id))
}

func (r *orderRepoPG) Update(ctx context.Context, o *Order) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicine_order SET status=$2, escrow_transaction_id=$3, escrow_status=$4,
			refund_amount=$5, penalty_amount=$6,
			preparing_started_at=$7, out_for_delivery_at=$8, delivered_at=$9,
			cancelled_at=$10, no_show_at=$11, escrow_released_at=$12, updated_at=NOW()
		WHERE id = $1`,
		o.ID, o.Status, o.EscrowTransactionID, o.EscrowStatus,
		o.RefundAmount, o.PenaltyAmount,
		o.PreparingStartedAt, o.OutForDeliveryAt, o.DeliveredAt,
		o.CancelledAt, o.NoShowAt, o.EscrowReleasedAt)
	return err
}

func (r *orderRepoPG) List(ctx context.Context, limit, offset int) ([]*Order, int, error) {
	return r.listWhere(ctx, ``, nil, limit, offset)
}

func (r *orderRepoPG) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*Order, int, error) {
	return r.listWhere(ctx, `WHERE customer_id = $1`, []interface{}{customerID}, limit, offset)
}

func (r *orderRepoPG) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Order, int, error) {
	return r.listWhere(ctx, `WHERE status = $1`, []interface{}{status}, limit, offset)
}

func (r *orderRepoPG) ListOverdue(ctx context.Context, now time.Time, limit, offset int) ([]*Order, int, error) {
	return r.listWhere(ctx, `WHERE status = $1 AND collection_deadline < $2`,
		[]interface{}{StatusOutForDelivery, now}, limit, offset)
}

func (r *orderRepoPG) listWhere(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Order, int, error) {
	var total int
	countSQL := `SELECT COUNT(*) FROM medicine_order ` + where
	if err := r.conn(ctx).QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	dataSQL := `SELECT ` + orderCols + ` FROM medicine_order ` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := r.conn(ctx).Query(ctx, dataSQL, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, nil
}
