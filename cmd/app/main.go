package main

import (
	"context"
	"embed"
	"fmt"
	"os"

	"kadan/internal/application"
	"kadan/internal/delivery/api"
	"kadan/internal/delivery/discord"
	"kadan/internal/delivery/telegram"
	"kadan/internal/integration/lostark"
	"kadan/internal/repository"
	"kadan/pkg/config"
	"kadan/pkg/logger"
	service "kadan/pkg/services"
	"kadan/pkg/sheets"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		mode    string
		envFile string
	)
	pflag.StringVar(&mode, "mode", "", "bot mode: test or prod (overrides BOT_MODE)")
	pflag.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pflag.Parse()

	_ = godotenv.Load(envFile)

	cfg := config.Config{}
	if err := config.ReadEnvConfig(&cfg); err != nil {
		return err
	}
	if mode != "" {
		cfg.Mode = mode
	}

	log := logger.NewLogger(&logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.NewPostgresDB(ctx, &cfg.Repo)
	if err != nil {
		return fmt.Errorf("failed to init db: %w", err)
	}
	defer db.Close()

	log.Info("running migrations")
	if err := repository.RunMigrations(db, migrationFS, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repos := repository.NewRepository(db)
	settings := application.NewSettingsServiceImpl(repos.Settings, cfg.SettingsTTL, log)

	token, err := cfg.DiscordToken()
	if err != nil {
		return err
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}

	gateway := discord.NewGateway(session, settings, log.With("gateway"))
	fanout := application.NewNotifierFanout(log, gateway)

	var sheetsClient sheets.Client
	if cfg.GoogleCredentialsFile != "" {
		client, err := sheets.NewGoogleSheetsClient(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			return fmt.Errorf("failed to init sheets: %w", err)
		}
		sheetsClient = client
	}

	services := application.NewService(repos, settings, application.Collaborators{
		Resolver: lostark.NewClient(&cfg.Lostark),
		Members:  gateway,
		Disputes: gateway,
		Notifier: fanout,
		Sheets:   sheetsClient,
	}, application.Options{
		Session:          application.SessionOptions{TTL: cfg.VerifySessionTTL},
		BlocklistSheetID: cfg.BlocklistSpreadsheetID,
		SheetOwnerEmail:  cfg.GoogleOwnerEmail,
	}, log)

	manager := service.NewManager(log)
	manager.AddService(discord.NewBot(&cfg, session, gateway, services, log.With("discord")))

	if cfg.TelegramToken != "" {
		tg, err := telegram.NewBot(cfg.TelegramToken, cfg.TelegramAdminChatIDs, services.Blocks, log.With("telegram"))
		if err != nil {
			return fmt.Errorf("failed to init telegram: %w", err)
		}
		fanout.Add(tg)
		manager.AddService(tg)
	}

	if cfg.APIAddr != "" {
		manager.AddService(api.NewServer(cfg.APIAddr, repos, services, log.With("api")))
	}

	log.Info("starting in %s mode", cfg.Mode)
	return manager.Run(ctx)
}
