package handlers_test

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/models"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{8}$`)

func (h *harness) addToCart(token string, product models.Product, quantity int) {
	h.t.Helper()
	resp := h.do(http.MethodPost, "/api/cart", token, map[string]any{"productId": product.ID, "quantity": quantity})
	require.Equal(h.t, http.StatusCreated, resp.Status, resp.Body)
}

func (h *harness) stockOf(product models.Product) int {
	h.t.Helper()
	var fresh models.Product
	require.NoError(h.t, h.db.First(&fresh, "id = ?", product.ID).Error)
	return fresh.Stock
}

func (h *harness) placeOrder(acct account, address models.Address) response {
	h.t.Helper()
	return h.do(http.MethodPost, "/api/orders", acct.Token, map[string]any{"addressId": address.ID, "notes": "Leave at door"})
}

func TestCreateOrder(t *testing.T) {
	h := newHarness(t)
	acct := h.createUser(models.RoleUser)
	address := h.createAddress(acct.User.ID, true)
	mug := h.createProduct("Mug", 12.5, 10, true, nil)
	pan := h.createProduct("Pan", 20, 3, true, nil)

	h.addToCart(acct.Token, mug, 2)
	h.addToCart(acct.Token, pan, 1)

	resp := h.placeOrder(acct, address)
	require.Equal(t, http.StatusCreated, resp.Status, resp.Body)

	order := resp.Data()
	assert.Regexp(t, orderNumberPattern, order["orderNumber"])
	assert.Equal(t, "PENDING", order["status"])
	assert.Equal(t, 45.0, order["subtotal"])
	assert.Equal(t, 5.0, order["shippingFee"])
	assert.Equal(t, 50.0, order["total"])
	assert.Equal(t, "USD", order["currency"])
	assert.Equal(t, "Leave at door", order["notes"])
	assert.Equal(t, "1 Main St", order["shippingLine1"])
	assert.Len(t, order["items"], 2)

	assert.Equal(t, 8, h.stockOf(mug))
	assert.Equal(t, 2, h.stockOf(pan))

	cart := h.do(http.MethodGet, "/api/cart", acct.Token, nil)
	assert.Empty(t, cart.Data()["items"])

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OrdersCreated))
	assert.Equal(t, 50.0, testutil.ToFloat64(h.metrics.OrderRevenue))

	require.Eventually(t, func() bool { return len(h.notifier.Orders()) == 1 }, 2*time.Second, 10*time.Millisecond)
	sent := h.notifier.Orders()[0]
	assert.Equal(t, order["orderNumber"], sent.OrderNumber)
	assert.Equal(t, acct.User.Email, sent.Email)
	assert.Equal(t, "1 Main St, Springfield, 12345, US", sent.ShipTo)
	assert.Len(t, sent.Items, 2)
}

func TestCreateOrderFreeShipping(t *testing.T) {
	h := newHarness(t)
	acct := h.createUser(models.RoleUser)
	address := h.createAddress(acct.User.ID, true)
	lamp := h.createProduct("Lamp", 50, 5, true, nil)

	h.addToCart(acct.Token, lamp, 2)

	resp := h.placeOrder(acct, address)
	require.Equal(t, http.StatusCreated, resp.Status, resp.Body)
	assert.Equal(t, 100.0, resp.Data()["subtotal"])
	assert.Equal(t, 0.0, resp.Data()["shippingFee"])
	assert.Equal(t, 100.0, resp.Data()["total"])
}

func TestCreateOrderRejections(t *testing.T) {
	h := newHarness(t)
	acct := h.createUser(models.RoleUser)
	other := h.createUser(models.RoleUser)
	mine := h.createAddress(acct.User.ID, true)
	theirs := h.createAddress(other.User.ID, true)

	resp := h.placeOrder(acct, mine)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "Your cart is empty", resp.Error())

	lamp := h.createProduct("Lamp", 50, 5, true, nil)
	h.addToCart(acct.Token, lamp, 1)

	resp = h.placeOrder(acct, theirs)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "Address not found", resp.Error())

	resp = h.do(http.MethodPost, "/api/orders", acct.Token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "Address id is required", resp.Error())

	// Stock dropped after the item was carted.
	require.NoError(t, h.db.Model(&models.Product{}).Where("id = ?", lamp.ID).Update("stock", 0).Error)
	resp = h.placeOrder(acct, mine)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "Lamp is out of stock", resp.Error())

	cart := h.do(http.MethodGet, "/api/cart", acct.Token, nil)
	assert.Len(t, cart.Data()["items"], 1, "failed checkout leaves the cart untouched")

	var orders int64
	require.NoError(t, h.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestOrderVisibilityAndCancel(t *testing.T) {
	h := newHarness(t)
	acct := h.createUser(models.RoleUser)
	other := h.createUser(models.RoleUser)
	address := h.createAddress(acct.User.ID, true)
	mug := h.createProduct("Mug", 10, 5, true, nil)

	h.addToCart(acct.Token, mug, 3)
	placed := h.placeOrder(acct, address)
	require.Equal(t, http.StatusCreated, placed.Status)
	orderID := placed.Data()["id"].(string)
	require.Equal(t, 2, h.stockOf(mug))

	list := h.do(http.MethodGet, "/api/orders", acct.Token, nil)
	require.Equal(t, http.StatusOK, list.Status)
	assert.Len(t, list.List(), 1)

	filtered := h.do(http.MethodGet, "/api/orders?status=shipped", acct.Token, nil)
	assert.Empty(t, filtered.List())

	bad := h.do(http.MethodGet, "/api/orders?status=lost", acct.Token, nil)
	assert.Equal(t, http.StatusBadRequest, bad.Status)

	assert.Empty(t, h.do(http.MethodGet, "/api/orders", other.Token, nil).List())
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/orders/"+orderID, other.Token, nil).Status)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/api/orders/"+orderID+"/cancel", other.Token, nil).Status)

	got := h.do(http.MethodGet, "/api/orders/"+orderID, acct.Token, nil)
	require.Equal(t, http.StatusOK, got.Status)
	assert.Len(t, got.Data()["items"], 1)

	cancelled := h.do(http.MethodPost, "/api/orders/"+orderID+"/cancel", acct.Token, nil)
	require.Equal(t, http.StatusOK, cancelled.Status)
	assert.Equal(t, "CANCELLED", cancelled.Data()["status"])
	assert.Equal(t, 5, h.stockOf(mug), "cancelling restocks")

	again := h.do(http.MethodPost, "/api/orders/"+orderID+"/cancel", acct.Token, nil)
	assert.Equal(t, http.StatusBadRequest, again.Status)
	assert.Equal(t, "Only pending orders can be cancelled", again.Error())
	assert.Equal(t, 5, h.stockOf(mug))
}

func TestAdminOrderStatus(t *testing.T) {
	h := newHarness(t)
	admin := h.createUser(models.RoleAdmin)
	acct := h.createUser(models.RoleUser)
	address := h.createAddress(acct.User.ID, true)
	mug := h.createProduct("Mug", 10, 5, true, nil)

	h.addToCart(acct.Token, mug, 1)
	placed := h.placeOrder(acct, address)
	require.Equal(t, http.StatusCreated, placed.Status)
	orderID := placed.Data()["id"].(string)
	number := placed.Data()["orderNumber"].(string)

	all := h.do(http.MethodGet, "/api/admin/orders?search="+number[len(number)-8:], admin.Token, nil)
	require.Equal(t, http.StatusOK, all.Status)
	require.Len(t, all.List(), 1)

	got := h.do(http.MethodGet, "/api/admin/orders/"+orderID, admin.Token, nil)
	require.Equal(t, http.StatusOK, got.Status)
	user, _ := got.Data()["user"].(map[string]any)
	assert.Equal(t, acct.User.Email, user["email"])

	invalid := h.do(http.MethodPatch, "/api/admin/orders/"+orderID+"/status", admin.Token, map[string]any{"status": "LOST"})
	assert.Equal(t, http.StatusBadRequest, invalid.Status)

	shipped := h.do(http.MethodPatch, "/api/admin/orders/"+orderID+"/status", admin.Token, map[string]any{"status": "shipped"})
	require.Equal(t, http.StatusOK, shipped.Status)
	assert.Equal(t, "SHIPPED", shipped.Data()["status"])

	userCancel := h.do(http.MethodPost, "/api/orders/"+orderID+"/cancel", acct.Token, nil)
	assert.Equal(t, http.StatusBadRequest, userCancel.Status)

	cancelled := h.do(http.MethodPatch, "/api/admin/orders/"+orderID+"/status", admin.Token, map[string]any{"status": "CANCELLED"})
	require.Equal(t, http.StatusOK, cancelled.Status)
	assert.Equal(t, 5, h.stockOf(mug))

	reopen := h.do(http.MethodPatch, "/api/admin/orders/"+orderID+"/status", admin.Token, map[string]any{"status": "PENDING"})
	assert.Equal(t, http.StatusBadRequest, reopen.Status)
	assert.Equal(t, "Cancelled orders cannot be changed", reopen.Error())

	forbidden := h.do(http.MethodGet, "/api/admin/orders", acct.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, forbidden.Status)
}
