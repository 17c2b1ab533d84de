// Package provider wraps the OpenAI endpoints the relay depends on:
// speech-to-text, chat-based translation, and text-to-speech.
package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"voicerelay/internal/domain"
)

// OpenAIConfig configures the shared OpenAI client.
type OpenAIConfig struct {
	APIBase         string // default: https://api.openai.com/v1
	APIKey          string
	TranscribeModel string // e.g. "whisper-1"
	ChatModel       string // e.g. "gpt-4o-mini"
	SpeechModel     string // e.g. "tts-1"
	Voice           string // e.g. "nova"
	Logger          *slog.Logger
}

// OpenAI is one configured client reused across requests. It implements
// domain.Transcriber, domain.Translator, and domain.Synthesizer.
type OpenAI struct {
	api             *openai.Client
	transcribeModel string
	chatModel       string
	speechModel     string
	voice           string
	logger          *slog.Logger
}

// NewOpenAI creates the provider. Construct once at startup and inject.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = openai.Whisper1
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4oMini
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceNova)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = cfg.APIBase
	}

	return &OpenAI{
		api:             openai.NewClientWithConfig(clientCfg),
		transcribeModel: cfg.TranscribeModel,
		chatModel:       cfg.ChatModel,
		speechModel:     cfg.SpeechModel,
		voice:           cfg.Voice,
		logger:          cfg.Logger,
	}
}

// Healthy checks that the API key is accepted.
func (o *OpenAI) Healthy(ctx context.Context) error {
	if _, err := o.api.ListModels(ctx); err != nil {
		return fmt.Errorf("openai not reachable: %w", err)
	}
	return nil
}

// Transcribe converts a voice note to text. The upload filename carries the
// extension derived from the blob's MIME subtype; Whisper uses it to pick
// the decoder.
func (o *OpenAI) Transcribe(ctx context.Context, blob domain.MediaBlob) (string, error) {
	resp, err := o.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.transcribeModel,
		Reader:   bytes.NewReader(blob.Data),
		FilePath: "audio." + blob.FileExt(),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", domain.Upstream("transcription", err)
	}

	o.logger.Info("transcription complete", "text_len", len(resp.Text))
	return resp.Text, nil
}

// Translate asks the chat model for a translation into the named language.
// Whatever the model returns is forwarded as-is after trimming: empty or
// refused completions are not retried or corrected.
func (o *OpenAI) Translate(ctx context.Context, text, language string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following text to %s. Reply with the translation only, no explanation.\n\n%s",
		language, text)

	resp, err := o.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", domain.Upstream("translation", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}

	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	o.logger.Info("translation complete", "language", language, "text_len", len(translated))
	return translated, nil
}

// Synthesize renders text as speech with the configured voice and returns
// the raw audio bytes (MP3 for the OpenAI TTS models).
func (o *OpenAI) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := o.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(o.speechModel),
		Input: text,
		Voice: openai.SpeechVoice(o.voice),
	})
	if err != nil {
		return nil, domain.Upstream("speech", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, domain.Upstream("speech", fmt.Errorf("read audio: %w", err))
	}

	o.logger.Info("synthesis complete", "voice", o.voice, "audio_bytes", len(audio))
	return audio, nil
}
