package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "segredo-de-teste")
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("DATABASE_MAX_RETRIES", "7")
	t.Setenv("DRAFT_TTL", "2h")
	t.Setenv("REDIS_KEY_PREFIX", "teste")
	t.Setenv("REDIS_CONSUMER", "api-1")
	t.Setenv("SERVER_PROXY_HEADER", "X-Forwarded-For")
	t.Setenv("SERVER_TRUSTED_PROXIES", "10.0.0.1,10.0.0.0/24")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "BRL", cfg.Currency)
	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.Equal(t, 7, cfg.DB.MaxRetries)
	assert.Equal(t, 2*time.Hour, cfg.Draft.TTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.Jwt.Expiry)
	assert.Equal(t, "teste", cfg.Redis.KeyPrefix)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 100, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "api-1", cfg.Redis.Consumer)
	assert.Equal(t, time.Minute, cfg.Redis.ClaimIdle)
	assert.Equal(t, "X-Forwarded-For", cfg.Server.ProxyHeader)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.0/24"}, cfg.Server.TrustedProxies)
}

func TestLoad_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env.test")
	require.NoError(t, os.WriteFile(path, []byte("AUTH_JWT_SECRET=do-arquivo\nDATABASE_DRIVER=memory\nCURRENCY=USD\n"), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"AUTH_JWT_SECRET", "DATABASE_DRIVER", "CURRENCY"} {
			_ = os.Unsetenv(k)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "do-arquivo", cfg.Auth.Jwt.Secret)
	assert.Equal(t, "USD", cfg.Currency)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("AUTH_JWT_SECRET"))
	t.Setenv("DATABASE_DRIVER", "memory")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *App {
		return &App{
			Currency: "BRL",
			DB:       &DB{Driver: "postgres", Url: "postgres://localhost/coletivo"},
			Draft:    &Draft{TTL: time.Hour},
		}
	}
	tests := []struct {
		name   string
		mutate func(*App)
	}{
		{"postgres without url", func(c *App) { c.DB.Url = "" }},
		{"unknown driver", func(c *App) { c.DB.Driver = "sqlite" }},
		{"bad currency", func(c *App) { c.Currency = "real" }},
		{"negative retries", func(c *App) { c.DB.MaxRetries = -1 }},
		{"zero draft ttl", func(c *App) { c.Draft.TTL = 0 }},
	}
	require.NoError(t, valid().Validate())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrConfiguration)
		})
	}
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "", maskValue(""))
	assert.Equal(t, "****", maskValue("abc"))
	assert.Equal(t, "po****tivo", maskValue("postgres://u:p@db/coletivo"))
}

func TestFindEnvFile_Missing(t *testing.T) {
	_, err := FindEnvFile("definitely-not-here.env")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
