package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        3000,
			WebhookPath: "/webhook",
		},
		WhatsApp: WhatsAppConfig{
			APIBase:  "https://graph.facebook.com/v20.0",
			Delivery: "inline",
		},
		OpenAI: OpenAIConfig{
			TranscribeModel: "whisper-1",
			ChatModel:       "gpt-4o-mini",
			SpeechModel:     "tts-1",
			Voice:           "nova",
		},
		Translation: TranslationConfig{
			TargetLanguage: "en",
		},
		Journal: JournalConfig{
			Enabled:       true,
			DBPath:        "~/.voicerelay/journal.db",
			RetentionDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
