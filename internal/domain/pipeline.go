package domain

import "context"

// MediaFetcher resolves a platform media id to its raw bytes.
type MediaFetcher interface {
	Fetch(ctx context.Context, mediaID string) (MediaBlob, error)
}

// Transcriber converts a voice note to text.
type Transcriber interface {
	Transcribe(ctx context.Context, blob MediaBlob) (string, error)
}

// Translator renders text into the named target language. language is a
// human-readable name ("Spanish"), not a code.
type Translator interface {
	Translate(ctx context.Context, text, language string) (string, error)
}

// Synthesizer converts text to speech. The returned bytes are an opaque
// audio container chosen by the provider.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ReplySender delivers synthesized audio back to a recipient. How the audio
// reaches the platform (inline data URI vs. upload-then-reference) is a
// deployment choice behind this interface.
type ReplySender interface {
	SendAudio(ctx context.Context, to string, audio []byte) error
}

// Pipeline runs one inbound voice message end to end. The webhook gateway
// blocks on this; its error becomes the HTTP status.
type Pipeline interface {
	Process(ctx context.Context, msg VoiceMessage) error
}
