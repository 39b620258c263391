package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/models"
)

func TestCartLifecycle(t *testing.T) {
	h := newHarness(t)
	acct := h.createUser(models.RoleUser)
	mug := h.createProduct("Mug", 12.5, 4, true, nil)
	pan := h.createProduct("Pan", 30, 1, true, nil)

	added := h.do(http.MethodPost, "/api/cart", acct.Token, map[string]any{"productId": mug.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, added.Status, added.Body)
	assert.Equal(t, float64(2), added.Data()["quantity"])

	merged := h.do(http.MethodPost, "/api/cart", acct.Token, map[string]any{"productId": mug.ID})
	require.Equal(t, http.StatusCreated, merged.Status)
	assert.Equal(t, float64(3), merged.Data()["quantity"], "adding again merges into the same line")
	assert.Equal(t, added.Data()["id"], merged.Data()["id"])

	tooMany := h.do(http.MethodPost, "/api/cart", acct.Token, map[string]any{"productId": mug.ID, "quantity": 2})
	assert.Equal(t, http.StatusBadRequest, tooMany.Status)
	assert.Equal(t, "Only 4 of Mug left in stock", tooMany.Error())

	h.do(http.MethodPost, "/api/cart", acct.Token, map[string]any{"productId": pan.ID, "quantity": 1})

	cart := h.do(http.MethodGet, "/api/cart", acct.Token, nil)
	require.Equal(t, http.StatusOK, cart.Status)
	assert.Equal(t, 67.5, cart.Data()["subtotal"])
	assert.Equal(t, float64(4), cart.Data()["itemCount"])
	assert.Len(t, cart.Data()["items"], 2)

	lineID := added.Data()["id"].(string)
	set := h.do(http.MethodPut, "/api/cart/"+lineID, acct.Token, map[string]any{"quantity": 1})
	require.Equal(t, http.StatusOK, set.Status)
	assert.Equal(t, float64(1), set.Data()["quantity"])

	over := h.do(http.MethodPut, "/api/cart/"+lineID, acct.Token, map[string]any{"quantity": 5})
	assert.Equal(t, http.StatusBadRequest, over.Status)

	zero := h.do(http.MethodPut, "/api/cart/"+lineID, acct.Token, map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, zero.Status)
	gone := h.do(http.MethodDelete, "/api/cart/"+lineID, acct.Token, nil)
	assert.Equal(t, http.StatusNotFound, gone.Status)

	cleared := h.do(http.MethodDelete, "/api/cart", acct.Token, nil)
	require.Equal(t, http.StatusOK, cleared.Status)
	empty := h.do(http.MethodGet, "/api/cart", acct.Token, nil)
	assert.Empty(t, empty.Data()["items"])
	assert.Equal(t, float64(0), empty.Data()["subtotal"])
}

func TestCartRejectsUnavailableProducts(t *testing.T) {
	h := newHarness(t)
	acct := h.createUser(models.RoleUser)
	hidden := h.createProduct("Hidden", 10, 5, false, nil)
	soldOut := h.createProduct("Sold Out", 10, 0, true, nil)

	resp := h.do(http.MethodPost, "/api/cart", acct.Token, map[string]any{"productId": hidden.ID})
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "Product not found", resp.Error())

	resp = h.do(http.MethodPost, "/api/cart", acct.Token, map[string]any{"productId": soldOut.ID})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "Sold Out is out of stock", resp.Error())

	resp = h.do(http.MethodPost, "/api/cart", acct.Token, map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "Product id is required", resp.Error())
}

func TestCartLinesAreScopedToOwner(t *testing.T) {
	h := newHarness(t)
	owner := h.createUser(models.RoleUser)
	intruder := h.createUser(models.RoleUser)
	mug := h.createProduct("Mug", 12.5, 4, true, nil)

	added := h.do(http.MethodPost, "/api/cart", owner.Token, map[string]any{"productId": mug.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, added.Status)
	lineID := added.Data()["id"].(string)

	resp := h.do(http.MethodPut, "/api/cart/"+lineID, intruder.Token, map[string]any{"quantity": 3})
	assert.Equal(t, http.StatusNotFound, resp.Status)
	resp = h.do(http.MethodDelete, "/api/cart/"+lineID, intruder.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	h.do(http.MethodDelete, "/api/cart", intruder.Token, nil)

	mine := h.do(http.MethodGet, "/api/cart", owner.Token, nil)
	assert.Len(t, mine.Data()["items"], 1)
}
