package features

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"entrevia/internal/metrics"
	"entrevia/internal/repo"
	"entrevia/internal/utils/sse"
	logging "entrevia/pkg/logger/pkg"
	rabbitmq "entrevia/pkg/rabbit/pkg"
	"entrevia/schema"
)

type CreditConfig struct {
	WebhookToken   string
	ProductCredits map[string]int
}

func ReadCreditConfig() *CreditConfig {
	v := viper.New()
	_ = v.BindEnv("KIWIFY_WEBHOOK_TOKEN")
	_ = v.BindEnv("KIWIFY_PRODUCT_CREDITS")

	mapping := map[string]int{}
	if raw := strings.TrimSpace(v.GetString("KIWIFY_PRODUCT_CREDITS")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			logging.NewTmpLogger().Warn("invalid KIWIFY_PRODUCT_CREDITS json")
			mapping = map[string]int{}
		}
	}

	return &CreditConfig{
		WebhookToken:   v.GetString("KIWIFY_WEBHOOK_TOKEN"),
		ProductCredits: mapping,
	}
}

// CreditEvent is the normalized payment event exchanged over the queue
// between the webhook endpoint and the credit worker.
type CreditEvent struct {
	EventID string          `json:"eventId"`
	Email   string          `json:"email"`
	Product string          `json:"product"`
	Credits int             `json:"credits"`
	Payload json.RawMessage `json:"payload"`
}

// WebhookResult mirrors the acknowledgement body the payment platform
// expects. Ignored events still acknowledge with ok=true so the platform
// stops redelivering them.
type WebhookResult struct {
	OK       bool   `json:"ok"`
	Ignored  string `json:"ignored,omitempty"`
	Credited int    `json:"credited,omitempty"`
	Queued   bool   `json:"queued,omitempty"`
}

// CreditProcessor turns payment webhook payloads into credit grants. When a
// message broker is configured the grant runs on the worker; otherwise it is
// applied inline.
type CreditProcessor struct {
	config *CreditConfig
	repo   *repo.Repository
	rabbit rabbitmq.Rabbit
}

func NewCreditProcessor(config *CreditConfig, repository *repo.Repository, broker rabbitmq.Rabbit) *CreditProcessor {
	return &CreditProcessor{config: config, repo: repository, rabbit: broker}
}

func getNested(payload map[string]any, path string) any {
	var cur any = payload
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}

func extractEmail(payload map[string]any) string {
	for _, path := range []string{"email", "customer.email", "buyer.email", "client.email", "user.email"} {
		if s, ok := getNested(payload, path).(string); ok && strings.Contains(s, "@") {
			return strings.ToLower(strings.TrimSpace(s))
		}
	}
	return ""
}

func extractProductKey(payload map[string]any) string {
	for _, path := range []string{"product_id", "product.id", "product", "product_name", "product.name", "offer.name"} {
		if s, ok := getNested(payload, path).(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func extractEventID(payload map[string]any) string {
	for _, path := range []string{"transaction_id", "order_id", "id", "event_id"} {
		switch v := getNested(payload, path).(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

var approvedEvents = map[string]bool{
	"compra_aprovada":   true,
	"approved":          true,
	"paid":              true,
	"payment_approved":  true,
	"payment_confirmed": true,
}

func isApproved(payload map[string]any) bool {
	event := strings.ToLower(stringAt(payload, "event", "trigger", "type"))
	status := strings.ToLower(stringAt(payload, "status", "payment_status"))
	return approvedEvents[event] || approvedEvents[status]
}

func stringAt(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (p *CreditProcessor) mapCredits(productKey string) int {
	if productKey == "" {
		return 0
	}
	if credits, ok := p.config.ProductCredits[productKey]; ok {
		return credits
	}
	for key, credits := range p.config.ProductCredits {
		if strings.EqualFold(key, productKey) {
			return credits
		}
	}
	return 0
}

// HandleWebhook validates and normalizes a raw payload. Valid events are
// handed to the queue when one is configured, otherwise applied directly.
func (p *CreditProcessor) HandleWebhook(ctx context.Context, payload map[string]any) (*WebhookResult, error) {
	if !isApproved(payload) {
		return &WebhookResult{OK: true, Ignored: "not_approved"}, nil
	}
	email := extractEmail(payload)
	if email == "" {
		return &WebhookResult{OK: true, Ignored: "email_not_found"}, nil
	}
	productKey := extractProductKey(payload)
	credits := p.mapCredits(productKey)
	if credits <= 0 {
		return &WebhookResult{OK: true, Ignored: "product_not_mapped"}, nil
	}
	eventID := extractEventID(payload)
	if eventID == "" {
		return &WebhookResult{OK: true, Ignored: "missing_transaction_id"}, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	event := CreditEvent{
		EventID: eventID,
		Email:   email,
		Product: productKey,
		Credits: credits,
		Payload: raw,
	}

	if _, ok := p.rabbit.(*rabbitmq.Dummy); !ok {
		body, err := json.Marshal(event)
		if err != nil {
			return nil, err
		}
		if err := p.rabbit.Publish(ctx, body); err != nil {
			logging.Logger(ctx).Error("credit event publish failed, applying inline", zap.Error(err))
			return p.Apply(ctx, event)
		}
		return &WebhookResult{OK: true, Queued: true}, nil
	}
	return p.Apply(ctx, event)
}

// Apply grants the credits for one event exactly once.
func (p *CreditProcessor) Apply(ctx context.Context, event CreditEvent) (*WebhookResult, error) {
	logger := logging.Logger(ctx)

	seen, err := p.repo.Ledger.Exists(ctx, event.EventID)
	if err != nil {
		return nil, err
	}
	if seen {
		return &WebhookResult{OK: true, Ignored: "duplicate"}, nil
	}

	user, err := p.repo.User.AddByEmail(ctx, event.Email, event.Credits)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			_, _ = p.repo.Ledger.Record(ctx, &schema.CreditLedger{
				EventID: event.EventID,
				Email:   event.Email,
				Product: event.Product,
				Status:  schema.LedgerUserNotFound,
				Payload: event.Payload,
			})
			return &WebhookResult{OK: true, Ignored: "user_not_found"}, nil
		}
		return nil, err
	}

	wrote, err := p.repo.Ledger.Record(ctx, &schema.CreditLedger{
		EventID: event.EventID,
		Email:   event.Email,
		Credits: event.Credits,
		Product: event.Product,
		Status:  schema.LedgerCredited,
		Payload: event.Payload,
	})
	if err != nil {
		return nil, err
	}
	if !wrote {
		logger.Warn("credit event raced a duplicate", zap.String("event_id", event.EventID))
	}

	metrics.AddCreditsGranted(event.Credits)
	sse.Notify(user.UID, sse.Notification{
		Event:   "credits",
		Credits: user.Credits,
		Message: "Creditos adicionados",
	})
	logger.Info("credits granted",
		zap.String("event_id", event.EventID),
		zap.Int("credits", event.Credits))
	return &WebhookResult{OK: true, Credited: event.Credits}, nil
}

// HandleDelivery is the queue consumer entrypoint.
func (p *CreditProcessor) HandleDelivery(ctx context.Context, msg amqp.Delivery) error {
	var event CreditEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		logging.Logger(ctx).Error("malformed credit event", zap.Error(err))
		return nil
	}
	_, err := p.Apply(ctx, event)
	return err
}
