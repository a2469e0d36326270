// Package main is the entry point for the prsc PromptScript resolver CLI.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/promptscript-lang/promptscript-go/cmd/prsc/app"
	"github.com/promptscript-lang/promptscript-go/internal/config"
)

// getLogLevel parses PRSC_LOG_LEVEL. Defaults to info when unset or
// invalid.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("invalid PRSC_LOG_LEVEL, using info", "value", levelStr)
		return slog.LevelInfo
	}
}

func main() {
	// Logs go to stderr so stdout stays clean for resolved documents.
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: getLogLevel()})
	slog.SetDefault(slog.New(handler))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
