package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sgtesuark/discord-role-snapshot-bot/internal/config"
	"github.com/sgtesuark/discord-role-snapshot-bot/internal/discord"
	"github.com/sgtesuark/discord-role-snapshot-bot/internal/i18n"
	"github.com/sgtesuark/discord-role-snapshot-bot/internal/logger"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "snapbot",
	Short: "Discord bot that snapshots the members of a role to CSV",
	Long: `snapbot registers a single /snapshot slash command. Invoking it
enumerates the members of a role, renders them as a semicolon-separated
CSV and uploads the file to a channel.

Configuration comes from the environment (a .env file is honoured):
SNAPBOT_TOKEN (required), SNAPBOT_CHANNEL_ID, SNAPBOT_LANG,
SNAPBOT_LANG_FILE, SNAPBOT_TZ, SNAPBOT_DATEFMT.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	// .env is optional; real env vars win
	_ = godotenv.Load()

	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func run(cmd *cobra.Command, args []string) error {
	log := logger.Init(logLevel)

	cfg := config.Load()
	if cfg.Token == "" {
		return errors.New("SNAPBOT_TOKEN missing, set it in the environment or .env")
	}

	cat, err := i18n.Load(cfg.LangFile)
	if err != nil {
		return err
	}

	bot, err := discord.NewBot(cfg, cat, log)
	if err != nil {
		return err
	}
	if err := bot.Start(); err != nil {
		return err
	}
	defer bot.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
