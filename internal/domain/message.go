package domain

import "time"

// VoiceMessage is the audio message extracted from a webhook envelope.
// It carries everything the relay pipeline needs; the surrounding envelope
// is discarded at the gateway.
type VoiceMessage struct {
	ID        string // platform message id
	From      string // sender phone number, becomes the reply "to"
	MediaID   string // platform media reference for the voice note
	Timestamp time.Time
}

// MediaBlob is downloaded media: raw bytes plus the content type reported
// by the platform. The bytes are request-scoped and never shared.
type MediaBlob struct {
	Data     []byte
	MimeType string
}

// FileExt returns a filename extension derived from the blob's MIME subtype
// ("audio/ogg; codecs=opus" -> "ogg"). Falls back to "ogg" when the type is
// missing or malformed, which is what WhatsApp voice notes are in practice.
func (b MediaBlob) FileExt() string {
	mt := b.MimeType
	for i := 0; i < len(mt); i++ {
		if mt[i] == ';' {
			mt = mt[:i]
			break
		}
	}
	for i := 0; i < len(mt); i++ {
		if mt[i] == '/' {
			if sub := mt[i+1:]; sub != "" {
				return sub
			}
			break
		}
	}
	return "ogg"
}
