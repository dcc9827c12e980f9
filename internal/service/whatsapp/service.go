package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/config"
	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/repository/records"
	"github.com/mamadbah2/greenbook/internal/repository/store"
	"github.com/mamadbah2/greenbook/internal/service/commands"
	"github.com/mamadbah2/greenbook/internal/service/sales"
	"github.com/mamadbah2/greenbook/internal/service/settlement"
	client "github.com/mamadbah2/greenbook/pkg/clients/whatsapp"
)

const sendTimeout = 10 * time.Second

// MessagingService describes the operations the HTTP layer can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	HandleWebhook(ctx context.Context, payload models.WebhookPayload) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Notifier delivers a review status and summary to a user.
type Notifier interface {
	Notify(ctx context.Context, notice models.Notice) error
}

// MetaWhatsAppService is the chat intake and notification channel backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg        config.WhatsAppConfig
	client     client.Client
	dispatcher commands.Dispatcher
	logger     *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance. A nil client turns
// outbound messages into log lines, for running without WhatsApp credentials.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, waClient client.Client, dispatcher commands.Dispatcher, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:        cfg,
		client:     waClient,
		dispatcher: dispatcher,
		logger:     logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", errors.New("missing mode or verify token")
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("unsupported hub.mode %s", mode)
	}

	if s.cfg.VerifyToken == "" || verifyToken != s.cfg.VerifyToken {
		return "", errors.New("invalid verify token")
	}

	return challenge, nil
}

// HandleWebhook processes inbound webhook payloads. Each message gets a reply;
// the first delivery failure is returned after all messages were attempted.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	var firstErr error

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if err := s.handleInboundMessage(ctx, msg); err != nil {
					s.logger.Error("failed to handle inbound message", zap.Error(err), zap.String("message_id", msg.ID))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}

	return firstErr
}

func (s *MetaWhatsAppService) handleInboundMessage(ctx context.Context, msg models.InboundMessage) error {
	text := extractMessageText(msg)
	if text == "" {
		s.logger.Debug("ignoring message without text", zap.String("type", msg.Type), zap.String("message_id", msg.ID))
		return nil
	}

	cmd := models.ParseCommand(text)
	s.logger.Info("parsed inbound command",
		zap.String("from", msg.From),
		zap.String("command", string(cmd.Type)))

	notice, err := s.dispatcher.HandleCommand(ctx, cmd, msg.From)
	if err != nil {
		s.logger.Warn("command failed", zap.String("from", msg.From), zap.String("command", string(cmd.Type)), zap.Error(err))
		notice = models.Notice{Summary: ErrorReply(err, notice.Summary)}
	}
	notice.Recipient = msg.From

	return s.Notify(ctx, notice)
}

// Notify implements Notifier.
func (s *MetaWhatsAppService) Notify(ctx context.Context, notice models.Notice) error {
	return s.send(ctx, notice.Recipient, FormatNotice(notice), false)
}

// SendOutbound lets internal operators push quick notifications via HTTP.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	return s.send(ctx, req.To, req.Message, req.PreviewURL)
}

func (s *MetaWhatsAppService) send(ctx context.Context, to, body string, previewURL bool) error {
	if to == "" {
		return errors.New("missing recipient")
	}
	if s.client == nil {
		s.logger.Info("whatsapp disabled, outbound message logged only", zap.String("to", to), zap.String("body", body))
		return nil
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         to,
		Body:       body,
		PreviewURL: previewURL,
	})
	return err
}

// FormatNotice renders a notice as chat text.
func FormatNotice(notice models.Notice) string {
	switch notice.Status {
	case models.ReviewNeedsReview:
		return "[needs review] " + notice.Summary
	case models.ReviewOK:
		return "[ok] " + notice.Summary
	default:
		return notice.Summary
	}
}

// ErrorReply turns a command error into a message for the sender. fallback,
// when set, is used for unsupported commands.
func ErrorReply(err error, fallback string) string {
	switch {
	case errors.Is(err, commands.ErrUnsupportedCommand) && fallback != "":
		return fallback
	case errors.Is(err, commands.ErrNoDraft):
		return "There is no pending sale. Send the sale as text first."
	case errors.Is(err, commands.ErrInvalidArguments),
		errors.Is(err, sales.ErrInvalidSale),
		errors.Is(err, settlement.ErrInvalidPayment),
		errors.Is(err, settlement.ErrInconsistentSettlement):
		return "Not saved: " + err.Error()
	case errors.Is(err, settlement.ErrAlreadySettled):
		return "That tick is already paid in full."
	case errors.Is(err, settlement.ErrNotTick):
		return "That sale was paid in cash, there is nothing owed."
	case errors.Is(err, records.ErrNotFound), errors.Is(err, records.ErrAmbiguousID):
		return "Sale not found: " + err.Error()
	case errors.Is(err, store.ErrUnavailable):
		return "Storage is unavailable right now. Nothing was lost, please try again shortly."
	default:
		return "Something went wrong, please try again."
	}
}

func extractMessageText(msg models.InboundMessage) string {
	if msg.Text != nil {
		return strings.TrimSpace(msg.Text.Body)
	}

	if msg.Interactive != nil && msg.Interactive.ButtonReply != nil {
		return msg.Interactive.ButtonReply.ID
	}

	return ""
}
