package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// WhatsAppConfig points at a WhatsApp Cloud API compatible endpoint.
type WhatsAppConfig struct {
	BaseURL       string
	Token         string
	PhoneNumberID string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// WhatsAppClient sends text messages through the Cloud API.
type WhatsAppClient struct {
	baseURL       string
	token         string
	phoneNumberID string
	httpClient    *http.Client
	logger        zerolog.Logger
}

func NewWhatsAppClient(cfg WhatsAppConfig, logger zerolog.Logger) (*WhatsAppClient, error) {
	if strings.TrimSpace(cfg.Token) == "" || strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("notify: whatsapp token and phone number id are required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &WhatsAppClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		httpClient:    httpClient,
		logger:        logger,
	}, nil
}

type whatsAppText struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body       string `json:"body"`
		PreviewURL bool   `json:"preview_url"`
	} `json:"text"`
}

// SendText sends body to an E.164 number.
func (c *WhatsAppClient) SendText(ctx context.Context, to, body string) error {
	to = strings.TrimPrefix(strings.TrimSpace(to), "+")
	if to == "" {
		return errors.New("notify: whatsapp recipient is required")
	}

	payload := whatsAppText{MessagingProduct: "whatsapp", To: to, Type: "text"}
	payload.Text.Body = body
	payload.Text.PreviewURL = true

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("notify: build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error().Int("status", resp.StatusCode).Str("to", to).Bytes("body", snippet).Msg("whatsapp returned error status")
		return fmt.Errorf("notify: whatsapp returned status %d", resp.StatusCode)
	}

	c.logger.Info().Str("to", to).Int("status", resp.StatusCode).Msg("whatsapp message sent")
	return nil
}
