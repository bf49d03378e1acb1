package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	Update(ctx context.Context, o *Order) error
	List(ctx context.Context, limit, offset int) ([]*Order, int, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*Order, int, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Order, int, error)
	// ListOverdue returns non-terminal orders out for delivery whose
	// collection deadline has passed.
	ListOverdue(ctx context.Context, now time.Time, limit, offset int) ([]*Order, int, error)
}
