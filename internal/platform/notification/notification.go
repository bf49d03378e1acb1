// Package notification delivers SMS and webhook notifications for order
// lifecycle events, with template rendering and in-memory storage for
// inspection and retry.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Channel is the delivery mechanism for a notification.
type Channel string

const (
	ChannelSMS     Channel = "sms"
	ChannelWebhook Channel = "webhook"
)

// Notification is a single outbound message.
type Notification struct {
	ID           string            `json:"id"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// SMSSender sends a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// WebhookSender posts an event payload to a configured endpoint.
type WebhookSender interface {
	SendWebhook(ctx context.Context, event string, payload interface{}) error
}

// Template is a reusable message body with {{key}} placeholders.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Body string `json:"body"`
}

// TemplateEngine stores templates and renders them with data maps.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates an engine with the order lifecycle templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:   "order-paid-locked",
			Name: "Payment Locked",
			Body: "Your payment of {{amount}} for order {{order_id}} is locked in escrow. {{pharmacy}} will confirm shortly.",
		},
		{
			ID:   "order-preparing",
			Name: "Order Preparing",
			Body: "{{pharmacy}} has confirmed order {{order_id}} and is preparing your medication.",
		},
		{
			ID:   "order-out-for-delivery",
			Name: "Out For Delivery",
			Body: "Order {{order_id}} is out for delivery. Please collect it before {{deadline}}.",
		},
		{
			ID:   "order-delivered",
			Name: "Order Delivered",
			Body: "Order {{order_id}} was collected. The escrow amount of {{amount}} has been released to {{pharmacy}}.",
		},
		{
			ID:   "order-cancelled-full-refund",
			Name: "Cancelled, Full Refund",
			Body: "Order {{order_id}} was cancelled. Your full escrow amount of {{refund}} has been refunded.",
		},
		{
			ID:   "order-cancelled-partial-refund",
			Name: "Cancelled During Preparation",
			Body: "Order {{order_id}} was cancelled during preparation. A cancellation penalty of {{penalty}} applied; {{refund}} was refunded.",
		},
		{
			ID:   "order-no-show",
			Name: "No-Show Recorded",
			Body: "Order {{order_id}} was not collected. A no-show penalty of {{penalty}} applied; {{refund}} was refunded to your wallet.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render performs {{key}} replacement on the template body. Keys present in
// the template but absent from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (string, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", templateID)
	}

	body := t.Body
	for k, v := range data {
		body = strings.ReplaceAll(body, "{{"+k+"}}", v)
	}
	return body, nil
}

// SMSCall records one call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender is a test double for SMSSender. It doubles as the default
// sender in development, where no SMS provider is configured.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded SMS calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Manager orchestrates sending, storage, and retry of notifications.
type Manager struct {
	sms       SMSSender
	webhook   WebhookSender
	templates *TemplateEngine

	mu            sync.RWMutex
	notifications map[string]*Notification
}

// NewManager constructs a Manager. webhook may be nil when no endpoint is
// configured.
func NewManager(sms SMSSender, webhook WebhookSender, tpl *TemplateEngine) *Manager {
	return &Manager{
		sms:           sms,
		webhook:       webhook,
		templates:     tpl,
		notifications: make(map[string]*Notification),
	}
}

func (m *Manager) dispatch(ctx context.Context, n *Notification) error {
	switch n.Channel {
	case ChannelSMS:
		return m.sms.SendSMS(ctx, n.Recipient, n.Body)
	case ChannelWebhook:
		if m.webhook == nil {
			return errors.New("no webhook endpoint configured")
		}
		return m.webhook.SendWebhook(ctx, n.TemplateID, n)
	default:
		return fmt.Errorf("unsupported channel: %s", n.Channel)
	}
}

// Send dispatches a notification, assigns an ID and timestamps, and stores the
// result in memory.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	n.Status = "pending"

	sendErr := m.dispatch(ctx, n)
	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	m.mu.Lock()
	m.notifications[n.ID] = n
	m.mu.Unlock()

	return sendErr
}

// SendFromTemplate renders a template and sends it over the given channel.
func (m *Manager) SendFromTemplate(ctx context.Context, channel Channel, templateID string, data map[string]string, recipient string) (*Notification, error) {
	body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notification{
		Channel:      channel,
		Recipient:    recipient,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}
	if err := m.Send(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

// Get retrieves a stored notification by ID.
func (m *Manager) Get(id string) (*Notification, error) {
	m.mu.RLock()
	n, ok := m.notifications[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return n, nil
}

// ListByRecipient returns stored notifications for a recipient, up to limit.
func (m *Manager) ListByRecipient(recipient string, limit int) []*Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Notification
	for _, n := range m.notifications {
		if n.Recipient == recipient {
			result = append(result, n)
			if len(result) >= limit {
				break
			}
		}
	}
	return result
}

// Retry re-sends a failed notification.
func (m *Manager) Retry(ctx context.Context, id string) error {
	m.mu.RLock()
	n, ok := m.notifications[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("notification %q not found", id)
	}
	if n.Status != "failed" {
		return fmt.Errorf("notification %q is not in failed status (current: %s)", id, n.Status)
	}

	sendErr := m.dispatch(ctx, n)

	m.mu.Lock()
	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
		n.Error = ""
	}
	m.mu.Unlock()

	return sendErr
}

// Stats returns counts of stored notifications grouped by status.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, n := range m.notifications {
		stats[n.Status]++
	}
	return stats
}
