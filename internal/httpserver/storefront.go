package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/engine"
	"github.com/Skotchmaster/storefront/internal/logging"
)

type StorefrontHTTP struct {
	Engine *engine.Engine
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type addItemRequest struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Image string `json:"img"`
}

type quantityRequest struct {
	Delta int64 `json:"delta"`
}

type handleRequest struct {
	Handle string `json:"handle"`
}

// fail logs and writes an engine error. Server side failures are logged as errors, user
// mistakes as warnings.
func fail(c echo.Context, l *slog.Logger, event string, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "error", err)
	} else {
		l.Warn(event, "status", status, "error", err)
	}
	if status == http.StatusInternalServerError {
		return c.JSON(status, "internal error")
	}
	return c.JSON(status, err.Error())
}

func (h *StorefrontHTTP) GetState(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.Engine.State(ctx))
}

func (h *StorefrontHTTP) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "signup")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("signup_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid body")
	}

	u, err := h.Engine.Signup(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return fail(c, l, "signup_error", err)
	}

	l.Info("signup_success", "user", u.Email)
	return c.JSON(http.StatusCreated, u)
}

func (h *StorefrontHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "login")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid body")
	}

	u, err := h.Engine.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, l, "login_error", err)
	}

	l.Info("login_success", "user", u.Email)
	return c.JSON(http.StatusOK, u)
}

func (h *StorefrontHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	h.Engine.Logout(ctx)
	logging.FromContext(ctx).With("handler", "logout").Info("logout_success")
	return c.JSON(http.StatusOK, "logged out successfully")
}

func (h *StorefrontHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.cart.item")

	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_cart_item_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		l.Warn("add_cart_item_error", "status", 400)
		return c.JSON(http.StatusBadRequest, "name required")
	}

	item := h.Engine.AddItem(ctx, req.Name, req.Price, req.Image)
	return c.JSON(http.StatusCreated, item)
}

func (h *StorefrontHTTP) ChangeQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "change.quantity")

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		l.Warn("change_quantity_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid index")
	}
	delta, ok := bindDelta(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, "non zero delta required")
	}

	item, err := h.Engine.ChangeQuantity(ctx, index, delta)
	if err != nil {
		return fail(c, l, "change_quantity_error", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *StorefrontHTTP) ChangeQuantityByID(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "change.quantity.by.id")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("change_quantity_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid id")
	}
	delta, ok := bindDelta(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, "non zero delta required")
	}

	item, err := h.Engine.ChangeQuantityByID(ctx, id, delta)
	if err != nil {
		return fail(c, l, "change_quantity_error", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *StorefrontHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "remove.cart.item")

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		l.Warn("remove_cart_item_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid index")
	}

	item, err := h.Engine.RemoveItem(ctx, index)
	if err != nil {
		return fail(c, l, "remove_cart_item_error", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *StorefrontHTTP) RemoveItemByID(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "remove.cart.item.by.id")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("remove_cart_item_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid id")
	}

	item, err := h.Engine.RemoveItemByID(ctx, id)
	if err != nil {
		return fail(c, l, "remove_cart_item_error", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *StorefrontHTTP) ProposeCheckout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "propose.checkout")

	p, err := h.Engine.ProposeCheckout(ctx)
	if err != nil {
		return fail(c, l, "propose_checkout_error", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *StorefrontHTTP) CommitCheckout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "commit.checkout")

	handle, ok := bindHandle(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, "handle required")
	}

	r, err := h.Engine.CommitCheckout(ctx, handle)
	if err != nil {
		return fail(c, l, "commit_checkout_error", err)
	}

	l.Info("order_placed", "order_id", r.OrderID)
	return c.JSON(http.StatusCreated, r)
}

func (h *StorefrontHTTP) CancelCheckout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cancel.checkout")

	handle, ok := bindHandle(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, "handle required")
	}
	if err := h.Engine.CancelCheckout(ctx, handle); err != nil {
		return fail(c, l, "cancel_checkout_error", err)
	}
	return c.JSON(http.StatusOK, "checkout cancelled")
}

func (h *StorefrontHTTP) ListRewards(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.Engine.Rewards(ctx))
}

func (h *StorefrontHTTP) SearchRewards(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	return c.JSON(http.StatusOK, h.Engine.SearchRewards(ctx, c.QueryParam("q"), limit))
}

func (h *StorefrontHTTP) ProposeRedeem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "propose.redeem")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		l.Warn("propose_redeem_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid reward id")
	}

	p, err := h.Engine.ProposeRedeem(ctx, id)
	if err != nil {
		return fail(c, l, "propose_redeem_error", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *StorefrontHTTP) CommitRedeem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "commit.redeem")

	handle, ok := bindHandle(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, "handle required")
	}

	rec, err := h.Engine.CommitRedeem(ctx, handle)
	if err != nil {
		return fail(c, l, "commit_redeem_error", err)
	}

	l.Info("reward_redeemed", "reward_id", rec.ID)
	return c.JSON(http.StatusCreated, rec)
}

func (h *StorefrontHTTP) CancelRedeem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cancel.redeem")

	handle, ok := bindHandle(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, "handle required")
	}
	if err := h.Engine.CancelRedeem(ctx, handle); err != nil {
		return fail(c, l, "cancel_redeem_error", err)
	}
	return c.JSON(http.StatusOK, "redemption cancelled")
}

func (h *StorefrontHTTP) Redemptions(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "redemptions")

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))

	res, err := h.Engine.Redemptions(ctx, page, size)
	if err != nil {
		return fail(c, l, "redemptions_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *StorefrontHTTP) Notifications(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Engine.Notifications())
}

func bindDelta(c echo.Context) (int64, bool) {
	var req quantityRequest
	if err := c.Bind(&req); err != nil || req.Delta == 0 {
		return 0, false
	}
	return req.Delta, true
}

func bindHandle(c echo.Context) (string, bool) {
	var req handleRequest
	if err := c.Bind(&req); err != nil || req.Handle == "" {
		return "", false
	}
	return req.Handle, true
}
