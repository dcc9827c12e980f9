package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/greenbook/internal/config"
	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/repository/records"
	"github.com/mamadbah2/greenbook/internal/repository/store"
	"github.com/mamadbah2/greenbook/internal/service/commands"
	"github.com/mamadbah2/greenbook/internal/service/settlement"
	client "github.com/mamadbah2/greenbook/pkg/clients/whatsapp"
)

var _ Notifier = (*MetaWhatsAppService)(nil)

type fakeClient struct {
	sent []client.SendTextMessageRequest
	err  error
}

func (f *fakeClient) SendTextMessage(_ context.Context, req client.SendTextMessageRequest) (*client.SendTextMessageResponse, error) {
	f.sent = append(f.sent, req)
	return &client.SendTextMessageResponse{}, f.err
}

type dispatcherFunc func(ctx context.Context, cmd models.Command, sender string) (models.Notice, error)

func (f dispatcherFunc) HandleCommand(ctx context.Context, cmd models.Command, sender string) (models.Notice, error) {
	return f(ctx, cmd, sender)
}

func payload(texts ...string) models.WebhookPayload {
	msgs := make([]models.InboundMessage, 0, len(texts))
	for i, text := range texts {
		msgs = append(msgs, models.InboundMessage{
			ID:   fmt.Sprintf("wamid.%d", i),
			From: "15550001111",
			Type: "text",
			Text: &models.TextContent{Body: text},
		})
	}
	return models.WebhookPayload{Entry: []models.WebhookEntry{{
		Changes: []models.WebhookChange{{Value: models.WebhookValue{Messages: msgs}}},
	}}}
}

func TestVerifyWebhookToken(t *testing.T) {
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{VerifyToken: "secret"}, nil, nil, nil)

	cases := []struct {
		name    string
		mode    string
		token   string
		wantErr bool
	}{
		{name: "valid", mode: "subscribe", token: "secret"},
		{name: "mode case insensitive", mode: "SUBSCRIBE", token: "secret"},
		{name: "wrong token", mode: "subscribe", token: "nope", wantErr: true},
		{name: "wrong mode", mode: "unsubscribe", token: "secret", wantErr: true},
		{name: "missing", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.VerifyWebhookToken(tc.mode, tc.token, "challenge-42")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "challenge-42", got)
		})
	}
}

func TestHandleWebhook_RepliesWithNotice(t *testing.T) {
	fc := &fakeClient{}
	var gotCmd models.Command
	d := dispatcherFunc(func(_ context.Context, cmd models.Command, sender string) (models.Notice, error) {
		gotCmd = cmd
		return models.Notice{Recipient: sender, Status: models.ReviewNeedsReview, Summary: "3.5g for 60.00. Please check: strain"}, nil
	})

	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, fc, d, nil)
	require.NoError(t, svc.HandleWebhook(context.Background(), payload("  sold 3.5g to jake for $60  ")))

	assert.Equal(t, models.CommandSale, gotCmd.Type)
	require.Len(t, fc.sent, 1)
	assert.Equal(t, "15550001111", fc.sent[0].To)
	assert.Equal(t, "[needs review] 3.5g for 60.00. Please check: strain", fc.sent[0].Body)
}

func TestHandleWebhook_ErrorsBecomeReplies(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "no draft", err: commands.ErrNoDraft, want: "There is no pending sale"},
		{name: "overpayment", err: fmt.Errorf("%w: 30 exceeds 20", settlement.ErrInvalidPayment), want: "Not saved:"},
		{name: "settled", err: settlement.ErrAlreadySettled, want: "already paid in full"},
		{name: "not found", err: records.ErrNotFound, want: "Sale not found"},
		{name: "store down", err: store.ErrUnavailable, want: "Nothing was lost"},
		{name: "other", err: errors.New("boom"), want: "Something went wrong"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fc := &fakeClient{}
			d := dispatcherFunc(func(context.Context, models.Command, string) (models.Notice, error) {
				return models.Notice{}, tc.err
			})
			svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, fc, d, nil)
			require.NoError(t, svc.HandleWebhook(context.Background(), payload("/pay abc 30")))
			require.Len(t, fc.sent, 1)
			assert.Contains(t, fc.sent[0].Body, tc.want)
		})
	}
}

func TestHandleWebhook_UnknownCommandUsesHelp(t *testing.T) {
	fc := &fakeClient{}
	d := dispatcherFunc(func(context.Context, models.Command, string) (models.Notice, error) {
		return models.Notice{Summary: "Unknown command. Send a sale as text"}, commands.ErrUnsupportedCommand
	})
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, fc, d, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), payload("/restock")))
	require.Len(t, fc.sent, 1)
	assert.Equal(t, "Unknown command. Send a sale as text", fc.sent[0].Body)
}

func TestHandleWebhook_DeliveryFailure(t *testing.T) {
	fc := &fakeClient{err: errors.New("meta down")}
	calls := 0
	d := dispatcherFunc(func(_ context.Context, _ models.Command, sender string) (models.Notice, error) {
		calls++
		return models.Notice{Recipient: sender, Summary: "hi"}, nil
	})
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, fc, d, nil)

	err := svc.HandleWebhook(context.Background(), payload("/help", "/ticks"))
	assert.EqualError(t, err, "meta down")
	assert.Equal(t, 2, calls)
}

func TestHandleWebhook_SkipsNonText(t *testing.T) {
	d := dispatcherFunc(func(context.Context, models.Command, string) (models.Notice, error) {
		t.Fatal("dispatcher called")
		return models.Notice{}, nil
	})
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, &fakeClient{}, d, nil)
	p := models.WebhookPayload{Entry: []models.WebhookEntry{{Changes: []models.WebhookChange{{
		Value: models.WebhookValue{Messages: []models.InboundMessage{{ID: "1", From: "1", Type: "image"}}},
	}}}}}
	assert.NoError(t, svc.HandleWebhook(context.Background(), p))
}

func TestNotify_WithoutClientLogsOnly(t *testing.T) {
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, nil, nil, nil)
	assert.NoError(t, svc.Notify(context.Background(), models.Notice{Recipient: "1", Status: models.ReviewOK, Summary: "saved"}))
	assert.Error(t, svc.Notify(context.Background(), models.Notice{Summary: "no recipient"}))
}

func TestSendOutbound(t *testing.T) {
	fc := &fakeClient{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, fc, nil, nil)
	require.NoError(t, svc.SendOutbound(context.Background(), models.OutboundMessageRequest{To: "1", Message: "restock tomorrow", PreviewURL: true}))
	require.Len(t, fc.sent, 1)
	assert.Equal(t, client.SendTextMessageRequest{To: "1", Body: "restock tomorrow", PreviewURL: true}, fc.sent[0])
}

func TestFormatNotice(t *testing.T) {
	assert.Equal(t, "[ok] done", FormatNotice(models.Notice{Status: models.ReviewOK, Summary: "done"}))
	assert.Equal(t, "[needs review] check", FormatNotice(models.Notice{Status: models.ReviewNeedsReview, Summary: "check"}))
	assert.Equal(t, "plain", FormatNotice(models.Notice{Summary: "plain"}))
}
