package initializer

import (
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/coletivobank/coletivo/pkg/config"
)

var levelColors = map[log.Level]lipgloss.AdaptiveColor{
	log.DebugLevel: {Light: "#7E57C2", Dark: "#B39DDB"},
	log.InfoLevel:  {Light: "#00897B", Dark: "#4DB6AC"},
	log.WarnLevel:  {Light: "#F9A825", Dark: "#FFD54F"},
	log.ErrorLevel: {Light: "#C62828", Dark: "#EF5350"},
}

func logStyles() *log.Styles {
	styles := log.DefaultStyles()
	for level, color := range levelColors {
		styles.Levels[level] = lipgloss.NewStyle().
			SetString(level.String()).
			Bold(true).
			MaxWidth(5).
			Padding(0, 1).
			Foreground(color)
	}
	muted := lipgloss.AdaptiveColor{Light: "#616161", Dark: "#9E9E9E"}
	for _, key := range []string{"fund_id", "account_id", "request_id", "context"} {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(muted)
		styles.Values[key] = lipgloss.NewStyle().Bold(true)
	}
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(levelColors[log.ErrorLevel])
	styles.Values["error"] = lipgloss.NewStyle().Bold(true)
	return styles
}

// setupLogger builds the process logger and installs it as the slog default.
func setupLogger(cfg *config.Log) *slog.Logger {
	if cfg == nil {
		cfg = &config.Log{Format: "text"}
	}
	formatter := log.TextFormatter
	if cfg.Format == "json" {
		formatter = log.JSONFormatter
	}

	logger := log.NewWithOptions(os.Stdout, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	logger.SetStyles(logStyles())

	slogger := slog.New(logger)
	slog.SetDefault(slogger)
	return slogger
}
