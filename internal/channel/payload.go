package channel

import (
	"time"

	"voicerelay/internal/domain"
)

// --- WhatsApp webhook payload types ---

type waPayload struct {
	Object string    `json:"object"`
	Entry  []waEntry `json:"entry"`
}

type waEntry struct {
	ID      string     `json:"id"`
	Changes []waChange `json:"changes"`
}

type waChange struct {
	Value waValue `json:"value"`
	Field string  `json:"field"`
}

type waValue struct {
	MessagingProduct string      `json:"messaging_product"`
	Messages         []waMessage `json:"messages"`
}

type waMessage struct {
	From  string   `json:"from"`
	ID    string   `json:"id"`
	Type  string   `json:"type"`
	Audio *waAudio `json:"audio,omitempty"`
}

type waAudio struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
}

// ExtractKind tags the outcome of extracting the first message from an
// envelope.
type ExtractKind int

const (
	// ExtractNone: the envelope carries no message at all.
	ExtractNone ExtractKind = iota
	// ExtractOther: a message is present but it is not a usable voice note.
	ExtractOther
	// ExtractAudio: a voice note was found; Voice is populated.
	ExtractAudio
)

// Extraction is the tagged result of extractFirstMessage.
type Extraction struct {
	Kind  ExtractKind
	Voice domain.VoiceMessage
}

// extractFirstMessage walks entry[0].changes[0].value.messages[0] without
// assuming any array is non-empty. Only the first message of the first
// change of the first entry is considered; the platform delivers one
// message per envelope in practice.
func extractFirstMessage(p waPayload) Extraction {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return Extraction{Kind: ExtractNone}
	}
	msgs := p.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 {
		return Extraction{Kind: ExtractNone}
	}

	msg := msgs[0]
	if msg.Type != "audio" || msg.Audio == nil || msg.Audio.ID == "" {
		return Extraction{Kind: ExtractOther}
	}

	return Extraction{
		Kind: ExtractAudio,
		Voice: domain.VoiceMessage{
			ID:        msg.ID,
			From:      msg.From,
			MediaID:   msg.Audio.ID,
			Timestamp: time.Now(),
		},
	}
}
