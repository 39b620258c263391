package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/storefront/internal/utils"
)

const telegramAPIBase = "https://api.telegram.org"

// OrderNotifier tells staff about new orders.
type OrderNotifier interface {
	NotifyNewOrder(ctx context.Context, order OrderNotification) error
}

// TelegramService posts notifications to an admin chat through the Bot API.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	client      *http.Client
	log         *slog.Logger
}

// NewTelegramService creates a TelegramService. Empty credentials make it a no-op.
func NewTelegramService(botToken, adminChatID string, log *slog.Logger) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     telegramAPIBase,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

// WithAPIBase points the service at another Bot API host.
func (s *TelegramService) WithAPIBase(base string) *TelegramService {
	s.apiBase = strings.TrimRight(base, "/")
	return s
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends an HTML-formatted message to chatID.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" || chatID == "" {
		s.log.Debug("telegram not configured, skipping message")
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// OrderNotification contains order data for the admin chat.
type OrderNotification struct {
	OrderNumber  string
	CustomerName string
	Email        string
	Items        []OrderItemNotification
	Total        float64
	Currency     string
	ShipTo       string
}

// OrderItemNotification is one order line.
type OrderItemNotification struct {
	Name     string
	Quantity int
	Price    float64
}

// FormatPrice renders amount with thousand separators, two decimals and currency.
func FormatPrice(amount float64, currency string) string {
	if currency == "" {
		currency = "USD"
	}

	cents := int64(amount*100 + 0.5)
	if amount < 0 {
		cents = int64(amount*100 - 0.5)
	}
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	whole := fmt.Sprintf("%d", cents/100)
	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(digit)
	}

	return fmt.Sprintf("%s%s.%02d %s", sign, grouped.String(), cents%100, currency)
}

// FormatOrderMessage builds the admin chat message for an order.
func FormatOrderMessage(order OrderNotification) string {
	var items strings.Builder
	for i, item := range order.Items {
		fmt.Fprintf(&items, "%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			utils.EscapeHTML(item.Name),
			item.Quantity,
			FormatPrice(item.Price, order.Currency),
			FormatPrice(item.Price*float64(item.Quantity), order.Currency),
		)
	}

	return strings.TrimSpace(fmt.Sprintf(`<b>New order %s</b>
<b>Customer:</b> %s (%s)
<b>Ship to:</b> %s
<b>Items:</b>
%s
<b>Total:</b> %s`,
		utils.EscapeHTML(order.OrderNumber),
		utils.EscapeHTML(order.CustomerName),
		utils.EscapeHTML(order.Email),
		utils.EscapeHTML(order.ShipTo),
		items.String(),
		FormatPrice(order.Total, order.Currency),
	))
}

// NotifyNewOrder sends the order summary to the admin chat.
func (s *TelegramService) NotifyNewOrder(ctx context.Context, order OrderNotification) error {
	return s.SendMessage(ctx, s.adminChatID, FormatOrderMessage(order))
}
