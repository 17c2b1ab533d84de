package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"voicerelay/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fakePipeline struct {
	err   error
	calls int
	got   domain.VoiceMessage
}

func (f *fakePipeline) Process(ctx context.Context, msg domain.VoiceMessage) error {
	f.calls++
	f.got = msg
	return f.err
}

func newTestGateway(pipe *fakePipeline) *Gateway {
	return NewGateway(GatewayConfig{
		VerifyToken: "translationbot2025",
		Pipeline:    pipe,
		Logger:      testLogger(),
	})
}

// --- verification handshake ---

func TestVerification_Success(t *testing.T) {
	g := newTestGateway(&fakePipeline{})
	req := httptest.NewRequest("GET",
		"/webhook?hub.mode=subscribe&hub.verify_token=translationbot2025&hub.challenge=CH4LL", nil)
	rr := httptest.NewRecorder()

	g.handleVerification(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "CH4LL" {
		t.Errorf("body = %q, want the literal challenge", rr.Body.String())
	}
}

func TestVerification_WrongToken(t *testing.T) {
	g := newTestGateway(&fakePipeline{})
	req := httptest.NewRequest("GET",
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=CH4LL", nil)
	rr := httptest.NewRecorder()

	g.handleVerification(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}

func TestVerification_MissingMode(t *testing.T) {
	g := newTestGateway(&fakePipeline{})
	req := httptest.NewRequest("GET",
		"/webhook?hub.verify_token=translationbot2025&hub.challenge=CH4LL", nil)
	rr := httptest.NewRecorder()

	g.handleVerification(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 when mode is absent", rr.Code)
	}
}

// --- payload extraction ---

func TestExtract_EmptyEnvelope(t *testing.T) {
	for _, p := range []waPayload{
		{Object: "whatsapp_business_account"},
		{Object: "whatsapp_business_account", Entry: []waEntry{{}}},
		{Object: "whatsapp_business_account", Entry: []waEntry{{Changes: []waChange{{}}}}},
	} {
		if got := extractFirstMessage(p); got.Kind != ExtractNone {
			t.Errorf("extract(%+v).Kind = %v, want ExtractNone", p, got.Kind)
		}
	}
}

func TestExtract_TextMessage(t *testing.T) {
	p := waPayload{
		Object: "whatsapp_business_account",
		Entry: []waEntry{{Changes: []waChange{{Value: waValue{
			Messages: []waMessage{{From: "1555", Type: "text"}},
		}}}}},
	}
	if got := extractFirstMessage(p); got.Kind != ExtractOther {
		t.Errorf("Kind = %v, want ExtractOther", got.Kind)
	}
}

func TestExtract_AudioWithoutID(t *testing.T) {
	p := waPayload{
		Object: "whatsapp_business_account",
		Entry: []waEntry{{Changes: []waChange{{Value: waValue{
			Messages: []waMessage{{From: "1555", Type: "audio", Audio: &waAudio{}}},
		}}}}},
	}
	if got := extractFirstMessage(p); got.Kind != ExtractOther {
		t.Errorf("Kind = %v, want ExtractOther for audio with no media id", got.Kind)
	}
}

func TestExtract_AudioMessage(t *testing.T) {
	p := waPayload{
		Object: "whatsapp_business_account",
		Entry: []waEntry{{Changes: []waChange{{Value: waValue{
			Messages: []waMessage{{ID: "wamid.1", From: "15551234567", Type: "audio", Audio: &waAudio{ID: "M1"}}},
		}}}}},
	}
	got := extractFirstMessage(p)
	if got.Kind != ExtractAudio {
		t.Fatalf("Kind = %v, want ExtractAudio", got.Kind)
	}
	if got.Voice.From != "15551234567" || got.Voice.MediaID != "M1" {
		t.Errorf("Voice = %+v", got.Voice)
	}
}

// --- message intake ---

const audioEnvelope = `{
	"object": "whatsapp_business_account",
	"entry": [{"changes": [{"value": {"messages": [
		{"id": "wamid.1", "from": "15551234567", "type": "audio", "audio": {"id": "M1"}}
	]}}]}]
}`

func postWebhook(g *Gateway, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	g.handleIncoming(rr, req)
	return rr
}

func TestIncoming_MissingObject(t *testing.T) {
	pipe := &fakePipeline{}
	g := newTestGateway(pipe)

	rr := postWebhook(g, `{"entry":[]}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if pipe.calls != 0 {
		t.Error("pipeline must not run for malformed top-level payload")
	}
}

func TestIncoming_InvalidJSON(t *testing.T) {
	g := newTestGateway(&fakePipeline{})
	rr := postWebhook(g, "not json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestIncoming_NonAudioIgnored(t *testing.T) {
	pipe := &fakePipeline{}
	g := newTestGateway(pipe)

	body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"messages":[{"from":"1555","type":"text"}]}}]}]}`
	rr := postWebhook(g, body)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if pipe.calls != 0 {
		t.Errorf("pipeline calls = %d, want 0 for non-audio message", pipe.calls)
	}
}

func TestIncoming_NoMessages(t *testing.T) {
	pipe := &fakePipeline{}
	g := newTestGateway(pipe)

	rr := postWebhook(g, `{"object":"whatsapp_business_account","entry":[]}`)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if pipe.calls != 0 {
		t.Error("pipeline must not run when there is no message")
	}
}

func TestIncoming_AudioRunsPipeline(t *testing.T) {
	pipe := &fakePipeline{}
	g := newTestGateway(pipe)

	rr := postWebhook(g, audioEnvelope)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if pipe.calls != 1 {
		t.Fatalf("pipeline calls = %d, want 1", pipe.calls)
	}
	if pipe.got.From != "15551234567" || pipe.got.MediaID != "M1" {
		t.Errorf("pipeline received %+v", pipe.got)
	}
}

func TestIncoming_PipelineErrorIs500(t *testing.T) {
	pipe := &fakePipeline{err: errors.New("transcription: boom")}
	g := newTestGateway(pipe)

	rr := postWebhook(g, audioEnvelope)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

// --- signature checks ---

func signedRequest(secret, body string) *http.Request {
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestIncoming_ValidSignature(t *testing.T) {
	pipe := &fakePipeline{}
	g := NewGateway(GatewayConfig{
		VerifyToken: "t", AppSecret: "app-secret", Pipeline: pipe, Logger: testLogger(),
	})

	rr := httptest.NewRecorder()
	g.handleIncoming(rr, signedRequest("app-secret", audioEnvelope))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if pipe.calls != 1 {
		t.Error("pipeline should run for correctly signed payload")
	}
}

func TestIncoming_InvalidSignature(t *testing.T) {
	pipe := &fakePipeline{}
	g := NewGateway(GatewayConfig{
		VerifyToken: "t", AppSecret: "app-secret", Pipeline: pipe, Logger: testLogger(),
	})

	rr := httptest.NewRecorder()
	g.handleIncoming(rr, signedRequest("wrong-secret", audioEnvelope))
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
	if pipe.calls != 0 {
		t.Error("pipeline must not run for bad signature")
	}
}
