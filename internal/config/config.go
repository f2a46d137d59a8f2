package config

type Config struct {
	Backend BackendConfig
	Storage StorageConfig
	Server  ServerConfig
	Log     LogConfig
}

// BackendConfig points the client at the profile backend.
type BackendConfig struct {
	BaseURL string
}

// StorageConfig locates the client's durable session database.
type StorageConfig struct {
	DataDir string
}

// ServerConfig configures the `serve` command: listen port and the data
// tree the backend serves from.
type ServerConfig struct {
	Port         int
	DataDir      string
	TemplatesDir string
	StaticDir    string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port:         8000,
			DataDir:      "data",
			TemplatesDir: "data/tables",
			StaticDir:    "static",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend and environment
// variables.
//
// On macOS the backend is UserDefaults (domain: com.officework.app).
// On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/officework/config.json.
//
// Environment variables (OFFICEWORK_*) override backend values on all
// platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
