package escrow

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediport/portal/internal/platform/auth"
	"github.com/mediport/portal/pkg/pagination"
)

type Handler struct {
	svc    *Service
	ledger Ledger
}

func NewHandler(svc *Service, ledger Ledger) *Handler {
	return &Handler{svc: svc, ledger: ledger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "patient"))
	g.POST("/wallets/connect", h.Connect)
	g.GET("/wallets/:address", h.GetWallet)
	g.GET("/wallets/:address/transactions", h.ListTransactions)
	g.GET("/escrow/transactions", h.ListOrderTransactions)
}

type connectRequest struct {
	Address string `json:"address"`
}

func (h *Handler) Connect(c echo.Context) error {
	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w, err := h.svc.Connect(c.Request().Context(), req.Address)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) GetWallet(c echo.Context) error {
	w, err := h.svc.GetWallet(c.Request().Context(), c.Param("address"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "wallet not found")
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) ListTransactions(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTransactions(c.Request().Context(), c.Param("address"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "wallet not found")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListOrderTransactions(c echo.Context) error {
	raw := c.QueryParam("order_id")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "order_id query parameter is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}
	items, err := h.svc.ListOrderTransactions(c.Request().Context(), orderID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
