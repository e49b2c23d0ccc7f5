package main

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/coletivobank/coletivo/infra/initializer"
	"github.com/coletivobank/coletivo/pkg/app"
	"github.com/coletivobank/coletivo/pkg/config"
	"github.com/coletivobank/coletivo/webapi"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close() //nolint:errcheck

	fiberApp := webapi.SetupApp(app.New(deps, cfg))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Default().Info("Starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
		"currency", cfg.Currency,
	)
	return fiberApp.Listen(addr)
}
