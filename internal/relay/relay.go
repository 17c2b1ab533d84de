// Package relay composes the voice-translation pipeline: fetch the voice
// note, transcribe it, translate the text, synthesize speech, and deliver
// the reply to the original sender.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"voicerelay/internal/domain"
	"voicerelay/internal/journal"
	"voicerelay/internal/metrics"
)

// LanguageResolver maps a language code to the name used in the
// translation prompt.
type LanguageResolver interface {
	Name(code string) string
}

// Journal records pipeline runs. Optional; a nil Journal disables it.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
	MediaSeen(ctx context.Context, mediaID string) (int, error)
}

// Config wires the pipeline stages together. All stages are required;
// Journal is optional.
type Config struct {
	Fetcher        domain.MediaFetcher
	Transcriber    domain.Transcriber
	Translator     domain.Translator
	Synthesizer    domain.Synthesizer
	Sender         domain.ReplySender
	Languages      LanguageResolver
	TargetLanguage string // short code, resolved per run
	Journal        Journal
	Logger         *slog.Logger
}

// Relay is the pipeline. Each run is strictly sequential: every stage's
// output gates the next, any failure aborts the run, and nothing is
// retried. It implements domain.Pipeline.
type Relay struct {
	fetcher     domain.MediaFetcher
	transcriber domain.Transcriber
	translator  domain.Translator
	synthesizer domain.Synthesizer
	sender      domain.ReplySender
	languages   LanguageResolver
	targetLang  string
	journal     Journal
	logger      *slog.Logger
}

func New(cfg Config) *Relay {
	return &Relay{
		fetcher:     cfg.Fetcher,
		transcriber: cfg.Transcriber,
		translator:  cfg.Translator,
		synthesizer: cfg.Synthesizer,
		sender:      cfg.Sender,
		languages:   cfg.Languages,
		targetLang:  cfg.TargetLanguage,
		journal:     cfg.Journal,
		logger:      cfg.Logger,
	}
}

// Process runs one voice message through the pipeline. The reply goes to
// msg.From; the caller's HTTP response waits for this to return.
func (r *Relay) Process(ctx context.Context, msg domain.VoiceMessage) error {
	start := time.Now()
	runID := uuid.NewString()

	metrics.RelaysInFlight.Inc()
	defer metrics.RelaysInFlight.Dec()

	r.flagDuplicate(ctx, msg.MediaID)

	entry := journal.Entry{
		ID:      runID,
		MediaID: msg.MediaID,
		Sender:  msg.From,
	}

	blob, err := r.timedFetch(ctx, msg.MediaID)
	if err != nil {
		return r.fail(ctx, entry, start, err)
	}

	transcript, err := r.timedStage(ctx, "transcribe", func(ctx context.Context) (string, error) {
		return r.transcriber.Transcribe(ctx, blob)
	})
	if err != nil {
		return r.fail(ctx, entry, start, err)
	}
	entry.Transcript = transcript

	language := r.languages.Name(r.targetLang)
	translated, err := r.timedStage(ctx, "translate", func(ctx context.Context) (string, error) {
		return r.translator.Translate(ctx, transcript, language)
	})
	if err != nil {
		return r.fail(ctx, entry, start, err)
	}
	entry.Translation = translated

	audio, err := r.timedSynthesize(ctx, translated)
	if err != nil {
		return r.fail(ctx, entry, start, err)
	}

	stageStart := time.Now()
	if err := r.sender.SendAudio(ctx, msg.From, audio); err != nil {
		metrics.StageLatency.Observe(time.Since(stageStart).Seconds())
		return r.fail(ctx, entry, start, err)
	}
	metrics.StageLatency.Observe(time.Since(stageStart).Seconds())

	elapsed := time.Since(start)
	metrics.RelaysTotal.Inc()
	metrics.RelayLatency.Observe(elapsed.Seconds())

	entry.Status = "ok"
	entry.Latency = elapsed
	r.record(ctx, entry)

	r.logger.Info("relay complete",
		"run", runID, "to", msg.From, "media_id", msg.MediaID,
		"language", language, "elapsed", elapsed)
	return nil
}

// flagDuplicate warns when the platform re-delivers a media id that was
// already processed. Re-deliveries are flagged, never suppressed.
func (r *Relay) flagDuplicate(ctx context.Context, mediaID string) {
	if r.journal == nil {
		return
	}
	n, err := r.journal.MediaSeen(ctx, mediaID)
	if err != nil {
		r.logger.Warn("cannot check media history", "media_id", mediaID, "err", err)
		return
	}
	if n > 0 {
		metrics.DuplicateMedia.Inc()
		r.logger.Warn("media id seen before, processing anyway",
			"media_id", mediaID, "previous_runs", n)
	}
}

func (r *Relay) timedFetch(ctx context.Context, mediaID string) (domain.MediaBlob, error) {
	stageStart := time.Now()
	blob, err := r.fetcher.Fetch(ctx, mediaID)
	metrics.StageLatency.Observe(time.Since(stageStart).Seconds())
	return blob, err
}

func (r *Relay) timedStage(ctx context.Context, name string, fn func(context.Context) (string, error)) (string, error) {
	stageStart := time.Now()
	out, err := fn(ctx)
	metrics.StageLatency.Observe(time.Since(stageStart).Seconds())
	if err == nil {
		r.logger.Debug("stage complete", "stage", name, "elapsed", time.Since(stageStart))
	}
	return out, err
}

func (r *Relay) timedSynthesize(ctx context.Context, text string) ([]byte, error) {
	stageStart := time.Now()
	audio, err := r.synthesizer.Synthesize(ctx, text)
	metrics.StageLatency.Observe(time.Since(stageStart).Seconds())
	return audio, err
}

// fail records the aborted run and passes the stage error through
// unchanged.
func (r *Relay) fail(ctx context.Context, entry journal.Entry, start time.Time, err error) error {
	metrics.RelayFailures.Inc()

	entry.Status = "failed"
	entry.Error = err.Error()
	entry.Latency = time.Since(start)
	r.record(ctx, entry)

	return err
}

func (r *Relay) record(ctx context.Context, entry journal.Entry) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(ctx, entry); err != nil {
		r.logger.Warn("cannot record relay run", "run", entry.ID, "err", err)
	}
}
