package mylog

import (
	"context"
	"log/slog"
	"os"

	"portfolio/app/config"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

// Preinit installs a console logger so that config loading errors are readable.
// Everything goes to stderr: stdout belongs to the MCP transport.
func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

func Init(cfg *config.Config) error {
	router := slogmulti.Router()

	router = router.Add(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	}))

	if cfg.Log.Telegram.Token != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Log.Telegram.Token,
				Username:  cfg.Log.Telegram.ChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			telegramFilter,
		)
	}

	slog.SetDefault(slog.New(router.Handler()))

	return nil
}

// telegramFilter forwards errors and records explicitly tagged with "telegram".
func telegramFilter(_ context.Context, r slog.Record) bool {
	hasTelegram := false

	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "telegram" {
			hasTelegram = true
			return false
		}

		return true
	})

	return r.Level == slog.LevelError || hasTelegram
}
