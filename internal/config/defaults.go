package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			LogFormat:             "text",
			DefaultProvider:       "ollama",
			DefaultUser:           "local",
			MaxConcurrentMessages: 5,
		},
		Providers: map[string]ProviderConfig{
			"ollama": {
				Enabled:      true,
				Kind:         KindOllama,
				APIBase:      "http://localhost:11434",
				DefaultModel: "llama3.1:8b",
			},
		},
		Calendar: CalendarConfig{
			Enabled:        false,
			TimeoutSeconds: 15,
		},
		Database: DatabaseConfig{
			Path: "~/.flowmind/flowmind.db",
		},
		Schedule: ScheduleConfig{
			BusinessStartHour: 9,
			BusinessEndHour:   18,
			HorizonDays:       7,
		},
		Suggestions: SuggestionsConfig{
			TTLHours: 24,
		},
		Proactive: ProactiveConfig{
			Enabled:              true,
			IntervalMinutes:      30,
			RetryIntervalMinutes: 5,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
			API: APIConfig{
				Enabled: false,
				Host:    "127.0.0.1",
				Port:    8080,
			},
			CLI: CLIConfig{
				Enabled: true,
			},
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
