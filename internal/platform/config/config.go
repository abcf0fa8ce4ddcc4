package config

// Config is the root configuration for the service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Telegram TelegramConfig `yaml:"telegram"`
	Registry RegistryConfig `yaml:"registry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// RedisConfig locates the key-value store owned by the worker.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// TelegramConfig configures the chat front-end.
type TelegramConfig struct {
	Token       string `yaml:"token"`
	PollTimeout int    `yaml:"poll_timeout"`
	Debug       bool   `yaml:"debug"`
}

// RegistryConfig tunes the command worker.
type RegistryConfig struct {
	QueueSize int `yaml:"queue_size"`
}
