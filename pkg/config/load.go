package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads the first env file found among envFilePath, searching parent
// directories, falls back to ./.env and then processes the environment.
// Missing files are not an error.
func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()
	for _, path := range envFilePath {
		found, err := FindEnvFile(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path)
			continue
		}
		if err := godotenv.Load(found); err != nil {
			logger.Error("Failed to load environment file", "path", found, "error", err)
			continue
		}
		logger.Info("Loaded environment file", "path", found)
		return loadFromEnv()
	}
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment variables")
	}
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Default().Info("App config loaded",
		"env", cfg.Env,
		"currency", cfg.Currency,
		"db_driver", cfg.DB.Driver,
		"db", maskValue(cfg.DB.Url),
		"redis", maskValue(cfg.Redis.URL),
		"auth_jwt_secret", maskValue(cfg.Auth.Jwt.Secret),
		"auth_jwt_expiry", cfg.Auth.Jwt.Expiry,
		"draft_ttl", cfg.Draft.TTL,
		"rate_limit_max_requests", cfg.RateLimit.MaxRequests,
		"rate_limit_window", cfg.RateLimit.Window,
	)
	return &cfg, nil
}

// Validate checks the settings envconfig cannot express.
func (c *App) Validate() error {
	switch c.DB.Driver {
	case "memory":
	case "postgres":
		if c.DB.Url == "" {
			return domain.Configurationf("DATABASE_URL is required with the postgres driver")
		}
	default:
		return domain.Configurationf("unknown DATABASE_DRIVER %q", c.DB.Driver)
	}
	if !money.Code(c.Currency).IsValid() {
		return fmt.Errorf("%w: CURRENCY: %w", domain.ErrConfiguration, money.ErrInvalidCurrency)
	}
	if c.DB.MaxRetries < 0 {
		return domain.Configurationf("DATABASE_MAX_RETRIES cannot be negative")
	}
	if c.Draft.TTL <= 0 {
		return domain.Configurationf("DRAFT_TTL must be positive")
	}
	return nil
}

// FindEnvFile returns the nearest file named filename, starting in the
// working directory and walking up. An empty filename means ".env".
func FindEnvFile(filename string) (string, error) {
	if filename == "" {
		filename = ".env"
	}
	if filepath.IsAbs(filename) {
		if _, err := os.Stat(filename); err != nil {
			return "", err
		}
		return filename, nil
	}
	curr, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(curr, filename)
		if _, err = os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(curr)
		if parent == curr {
			return "", os.ErrNotExist
		}
		curr = parent
	}
}

func maskValue(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
