package config

// Default returns the baseline configuration. File and environment
// values are layered on top of it by the Loader.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "127.0.0.1",
			Port: 1234,
		},
		Log: LogConfig{
			Level: "info",
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		Telegram: TelegramConfig{
			PollTimeout: 30,
		},
		Registry: RegistryConfig{
			QueueSize: 16,
		},
	}
}
