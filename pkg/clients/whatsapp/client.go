package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/greenbook/internal/config"
)

const defaultTimeout = 15 * time.Second

// ErrMissingRecipient is returned when a message has no destination number.
var ErrMissingRecipient = errors.New("whatsapp: missing recipient")

// Client exposes the WhatsApp Cloud API operations greenbook needs.
type Client interface {
	SendTextMessage(ctx context.Context, req SendTextMessageRequest) (*SendTextMessageResponse, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	http          *resty.Client
	phoneNumberID string
}

// NewClient builds a client from configuration. timeout <= 0 uses 15s.
func NewClient(cfg config.WhatsAppConfig, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.APIVersion != "" {
		base += "/" + strings.Trim(cfg.APIVersion, "/")
	}

	return &APIClient{
		http: resty.New().
			SetBaseURL(base).
			SetAuthToken(cfg.AccessToken).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
		phoneNumberID: cfg.PhoneNumberID,
	}
}

// SendTextMessageRequest is a plain text message.
type SendTextMessageRequest struct {
	To         string
	Body       string
	PreviewURL bool
}

// SendTextMessageResponse mirrors the successful response from Meta.
type SendTextMessageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// APIError is a non-2xx answer from the Cloud API.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error: status=%d code=%d message=%s", e.Status, e.Code, e.Message)
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type textPayload struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

// SendTextMessage posts a text message to the configured phone number.
func (c *APIClient) SendTextMessage(ctx context.Context, req SendTextMessageRequest) (*SendTextMessageResponse, error) {
	if strings.TrimSpace(req.To) == "" {
		return nil, ErrMissingRecipient
	}

	result := new(SendTextMessageResponse)
	failure := new(errorBody)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(textPayload{
			MessagingProduct: "whatsapp",
			To:               req.To,
			Type:             "text",
			Text:             textBody{Body: req.Body, PreviewURL: req.PreviewURL},
		}).
		SetResult(result).
		SetError(failure).
		SetPathParam("phoneNumberID", c.phoneNumberID).
		Post("/{phoneNumberID}/messages")
	if err != nil {
		return nil, fmt.Errorf("send whatsapp message: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, &APIError{Status: resp.StatusCode(), Code: failure.Error.Code, Message: failure.Error.Message}
	}

	return result, nil
}
