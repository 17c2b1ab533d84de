package channel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"voicerelay/internal/domain"
)

// DeliveryConfig configures reply delivery through the Graph API.
type DeliveryConfig struct {
	APIBase       string
	AccessToken   string
	PhoneNumberID string
	Logger        *slog.Logger
	HTTPClient    *http.Client // optional, for tests
}

// NewDeliverer selects a delivery strategy: "inline" embeds the audio as a
// base64 data URI in the message itself, "upload" stores the file with the
// platform first and references the returned media id.
func NewDeliverer(strategy string, cfg DeliveryConfig) (domain.ReplySender, error) {
	switch strategy {
	case "inline":
		return NewInlineDeliverer(cfg), nil
	case "upload":
		return NewUploadDeliverer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown delivery strategy: %s", strategy)
	}
}

// sender holds what both strategies share.
type sender struct {
	apiBase string
	token   string
	phoneID string
	client  *http.Client
	logger  *slog.Logger
}

func newSender(cfg DeliveryConfig) sender {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return sender{
		apiBase: cfg.APIBase,
		token:   cfg.AccessToken,
		phoneID: cfg.PhoneNumberID,
		client:  client,
		logger:  cfg.Logger,
	}
}

// audioRef is the audio field of an outbound message: exactly one of Link
// or ID is set.
type audioRef struct {
	Link string `json:"link,omitempty"`
	ID   string `json:"id,omitempty"`
}

// sendMessage posts one outbound audio message. Delivery is fire-and-forget:
// nothing beyond the HTTP accept is awaited.
func (s sender) sendMessage(ctx context.Context, to string, audio audioRef) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "audio",
		"audio":             audio,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.apiBase, s.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Upstream("delivery", fmt.Errorf("send message: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domain.Upstream("delivery",
			fmt.Errorf("send message %d: %s", resp.StatusCode, drainBody(resp.Body)))
	}

	s.logger.Info("reply delivered", "to", to)
	return nil
}

// InlineDeliverer sends the audio inside the message as a data URI, so no
// separate upload round-trip is needed.
type InlineDeliverer struct {
	sender
}

func NewInlineDeliverer(cfg DeliveryConfig) *InlineDeliverer {
	return &InlineDeliverer{sender: newSender(cfg)}
}

func (d *InlineDeliverer) SendAudio(ctx context.Context, to string, audio []byte) error {
	link := "data:audio/mp3;base64," + base64.StdEncoding.EncodeToString(audio)
	return d.sendMessage(ctx, to, audioRef{Link: link})
}

// UploadDeliverer uploads the audio to the platform's media endpoint and
// sends a message referencing the returned media id.
type UploadDeliverer struct {
	sender
}

func NewUploadDeliverer(cfg DeliveryConfig) *UploadDeliverer {
	return &UploadDeliverer{sender: newSender(cfg)}
}

func (d *UploadDeliverer) SendAudio(ctx context.Context, to string, audio []byte) error {
	mediaID, err := d.upload(ctx, audio)
	if err != nil {
		return err
	}
	return d.sendMessage(ctx, to, audioRef{ID: mediaID})
}

// upload multipart-posts the audio and returns the platform media id.
func (d *UploadDeliverer) upload(ctx context.Context, audio []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	writer.WriteField("messaging_product", "whatsapp")
	part, err := writer.CreateFormFile("file", "reply.mp3")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	writer.Close()

	url := fmt.Sprintf("%s/%s/media", d.apiBase, d.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", domain.Upstream("delivery", fmt.Errorf("upload media: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", domain.Upstream("delivery",
			fmt.Errorf("upload media %d: %s", resp.StatusCode, drainBody(resp.Body)))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(resp.Body, &out); err != nil {
		return "", domain.Upstream("delivery", fmt.Errorf("decode upload response: %w", err))
	}
	if out.ID == "" {
		return "", domain.Upstream("delivery", fmt.Errorf("upload response has no media id"))
	}

	d.logger.Info("reply audio uploaded", "media_id", out.ID, "bytes", len(audio))
	return out.ID, nil
}
