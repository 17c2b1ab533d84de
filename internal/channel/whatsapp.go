// Package channel implements the WhatsApp Business Cloud API side of the
// relay: the webhook gateway, media download, and reply delivery.
package channel

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"

	"voicerelay/internal/domain"
	"voicerelay/internal/metrics"
)

// GatewayConfig configures the webhook gateway.
type GatewayConfig struct {
	WebhookPath string // default: /webhook
	VerifyToken string // shared secret for the verification handshake
	AppSecret   string // optional: enables X-Hub-Signature-256 checks
	Pipeline    domain.Pipeline
	Logger      *slog.Logger
}

// Gateway terminates the WhatsApp webhook: the GET verification handshake
// and the POST message intake that feeds the relay pipeline.
type Gateway struct {
	path        string
	verifyToken string
	appSecret   string
	pipeline    domain.Pipeline
	logger      *slog.Logger
}

func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/webhook"
	}
	return &Gateway{
		path:        cfg.WebhookPath,
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		pipeline:    cfg.Pipeline,
		logger:      cfg.Logger,
	}
}

// Register mounts the webhook handlers on mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+g.path, g.handleVerification)
	mux.HandleFunc("POST "+g.path, g.handleIncoming)
}

// handleVerification answers the platform's ownership handshake: echo the
// challenge when the mode is present and the token matches, 403 otherwise.
func (g *Gateway) handleVerification(rw http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "" && token == g.verifyToken {
		g.logger.Info("webhook verified")
		rw.WriteHeader(http.StatusOK)
		fmt.Fprint(rw, html.EscapeString(challenge))
		return
	}

	g.logger.Warn("webhook verification failed", "mode", mode)
	http.Error(rw, "Forbidden", http.StatusForbidden)
}

// handleIncoming accepts a webhook delivery and runs the relay pipeline for
// the first audio message, if any. The HTTP response is deferred until the
// pipeline finishes; any pipeline error collapses to a bare 500.
func (g *Gateway) handleIncoming(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB max
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if g.appSecret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if !g.verifySignature(body, sig) {
			g.logger.Warn("invalid webhook signature")
			http.Error(rw, "Forbidden", http.StatusForbidden)
			return
		}
	}

	metrics.WebhooksTotal.Inc()

	var payload waPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		g.logger.Warn("bad webhook payload", "err", err)
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}

	if payload.Object == "" {
		http.Error(rw, "Not Found", http.StatusNotFound)
		return
	}

	ext := extractFirstMessage(payload)
	switch ext.Kind {
	case ExtractNone:
		rw.WriteHeader(http.StatusOK)
		return
	case ExtractOther:
		// Audio only; everything else is acknowledged and ignored.
		metrics.IgnoredMessages.Inc()
		rw.WriteHeader(http.StatusOK)
		return
	}

	g.logger.Info("voice message received",
		"from", ext.Voice.From, "media_id", ext.Voice.MediaID)

	if err := g.pipeline.Process(r.Context(), ext.Voice); err != nil {
		g.logger.Error("relay pipeline failed", "err", err, "media_id", ext.Voice.MediaID)
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(http.StatusOK)
}

// verifySignature checks the X-Hub-Signature-256 header.
func (g *Gateway) verifySignature(body []byte, signature string) bool {
	if len(signature) < 7 || signature[:7] != "sha256=" {
		return false
	}
	expected := signature[7:]

	mac := hmac.New(sha256.New, []byte(g.appSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(computed))
}

// decodeJSON is shared by the Graph API clients below.
func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

// drainBody reads a capped error body for diagnostics.
func drainBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	return string(bytes.TrimSpace(b))
}
