package order

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/mediport/portal/internal/domain/escrow"
	"github.com/mediport/portal/internal/platform/auth"
	"github.com/mediport/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/orders")

	g.POST("", h.Create, auth.RequireRole("admin", "patient"))
	g.GET("", h.List)
	g.GET("/overdue", h.ListOverdue, auth.RequireRole("admin", "pharmacy"))
	g.GET("/:id", h.Get)
	g.POST("/:id/lock", h.Lock, auth.RequireRole("admin", "patient"))
	g.POST("/:id/actions", h.Action)
	g.POST("/:id/reconcile", h.Reconcile, auth.RequireRole("admin"))
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateOrderInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if in.CustomerID == uuid.Nil {
		if id, err := uuid.Parse(auth.UserID(c)); err == nil {
			in.CustomerID = id
		}
	}

	o, err := h.svc.CreateOrder(c.Request().Context(), in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	var (
		items []*Order
		total int
		err   error
	)
	switch {
	case c.QueryParam("customer_id") != "":
		customerID, perr := uuid.Parse(c.QueryParam("customer_id"))
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid customer_id")
		}
		items, total, err = h.svc.ListOrdersByCustomer(ctx, customerID, pg.Limit, pg.Offset)
	case c.QueryParam("status") != "":
		items, total, err = h.svc.ListOrdersByStatus(ctx, Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	default:
		items, total, err = h.svc.ListOrders(ctx, pg.Limit, pg.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListOverdue(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListOverdue(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	o, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) Lock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	o, err := h.svc.LockEscrow(c.Request().Context(), id)
	if err != nil {
		return mapOrderError(err)
	}
	return c.JSON(http.StatusOK, actionResponse{Order: o, Message: "Payment locked in escrow. Waiting for the pharmacy to confirm."})
}

type actionRequest struct {
	Action Action `json:"action"`
	Status Status `json:"status,omitempty"`
}

type actionResponse struct {
	Order   *Order `json:"order"`
	Message string `json:"message"`
}

// Action runs one lifecycle action. update_status requests carry the target
// status instead of a concrete action and are resolved against the table.
func (h *Handler) Action(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Action == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "action is required")
	}

	var (
		o       *Order
		message string
	)
	if req.Action == ActionUpdateStatus {
		if req.Status == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "status is required for update_status")
		}
		o, message, err = h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	} else {
		o, message, err = h.svc.Advance(c.Request().Context(), id, req.Action)
	}
	if err != nil {
		return mapOrderError(err)
	}
	return c.JSON(http.StatusOK, actionResponse{Order: o, Message: message})
}

func (h *Handler) Reconcile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	report, err := h.svc.Reconcile(c.Request().Context(), id)
	if err != nil {
		return mapOrderError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// mapOrderError translates domain failures to HTTP statuses. Transition
// rejections are conflicts, an uncovered lock is a payment failure, and rail
// trouble is a bad gateway so clients can tell "retry later" from "your
// request is wrong".
func mapOrderError(err error) error {
	var invalid *InvalidTransitionError
	if errors.As(err, &invalid) {
		return echo.NewHTTPError(http.StatusConflict, invalid.Error())
	}

	var persist *PersistAfterLedgerError
	if errors.As(err, &persist) {
		return echo.NewHTTPError(http.StatusInternalServerError, persist.Error())
	}

	switch {
	case errors.Is(err, escrow.ErrInsufficientBalance):
		return echo.NewHTTPError(http.StatusPaymentRequired, "insufficient wallet balance to lock escrow")
	case errors.Is(err, escrow.ErrRailUnavailable), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusBadGateway, "escrow service unavailable, try again")
	case errors.Is(err, escrow.ErrWalletNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "wallet not found")
	case errors.Is(err, pgx.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}

	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
