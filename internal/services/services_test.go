package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/logger"
)

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "1,234,567.50 USD", FormatPrice(1234567.5, "USD"))
	assert.Equal(t, "0.99 EUR", FormatPrice(0.99, "EUR"))
	assert.Equal(t, "100.00 USD", FormatPrice(100, ""))
	assert.Equal(t, "-5.25 USD", FormatPrice(-5.25, "USD"))
}

func TestFormatOrderMessageEscapes(t *testing.T) {
	msg := FormatOrderMessage(OrderNotification{
		OrderNumber:  "ORD-1",
		CustomerName: "<b>Eve</b>",
		Items:        []OrderItemNotification{{Name: "Mug & Cup", Quantity: 2, Price: 3}},
		Total:        6,
		Currency:     "USD",
	})

	assert.Contains(t, msg, "&lt;b&gt;Eve&lt;/b&gt;")
	assert.Contains(t, msg, "Mug &amp; Cup")
	assert.Contains(t, msg, "2 x 3.00 USD = 6.00 USD")
}

func TestTelegramNotifyNewOrder(t *testing.T) {
	var got telegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewTelegramService("token", "42", logger.Discard()).WithAPIBase(srv.URL)
	err := svc.NotifyNewOrder(context.Background(), OrderNotification{OrderNumber: "ORD-7", Currency: "USD"})
	require.NoError(t, err)

	assert.Equal(t, "/bottoken/sendMessage", path)
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Contains(t, got.Text, "ORD-7")
}

func TestTelegramErrorsAndNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	failing := NewTelegramService("token", "42", logger.Discard()).WithAPIBase(srv.URL)
	assert.Error(t, failing.SendMessage(context.Background(), "42", "hi"))

	unconfigured := NewTelegramService("", "", logger.Discard())
	assert.NoError(t, unconfigured.NotifyNewOrder(context.Background(), OrderNotification{}))
}

func TestWelcomeEmail(t *testing.T) {
	e := WelcomeEmail("Ann", "ann@example.com", true)
	assert.Equal(t, []string{"ann@example.com"}, e.To)
	assert.Contains(t, e.Body, "administrator")

	assert.NotContains(t, WelcomeEmail("Bob", "bob@example.com", false).Body, "administrator")
	assert.NoError(t, NoopMailer{Log: logger.Discard()}.SendMail(context.Background(), e))
}
