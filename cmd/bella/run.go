package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/go-co-op/gocron/v2"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"bella/internal/ai"
	"bella/internal/chat"
	"bella/internal/discord"
	"bella/internal/keepalive"
	"bella/internal/logging"
	"bella/internal/mind"
	"bella/internal/persona"
	"bella/pkg/jobmgr"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and serve the liveness endpoint",
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	discordgo.Logger = logging.DiscordgoLogger(logger)

	logger.Info("starting Bella", "provider", cfg.AI.Provider, "memory", cfg.Memory.Path)

	store, err := mind.Open(storeOptions(cfg), logger)
	if err != nil {
		return err
	}
	if rep := store.Report(); rep.Changed() {
		logger.Info("memory loaded with changes",
			"fresh", rep.Fresh, "backfilled", rep.Backfilled, "repaired", rep.Repaired)
	}

	provider, err := ai.New(cfg.AI, logger)
	if err != nil {
		return err
	}
	p, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		return err
	}
	svc, err := chat.NewService(chat.Options{
		Store:            store,
		Provider:         provider,
		Images:           ai.NewImageGenerator(cfg.Image, nil, logger),
		Transcriber:      ai.NewTranscriber(cfg.Voice, nil, logger),
		Persona:          p,
		HTTPClient:       &http.Client{Timeout: cfg.DownloadTimeout},
		UnfilteredChance: cfg.UnfilteredChance,
	}, logger)
	if err != nil {
		return err
	}

	bot, err := discord.New(cfg, store, svc, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if _, err := store.ScheduleMaintenance(scheduler, cfg.Memory.MaintenanceInterval); err != nil {
		return err
	}
	scheduler.Start()

	jobs := jobmgr.NewManager(logger)
	// Either job failing takes the process down.
	jobs.Reporter = func(ev jobmgr.Event) {
		if ev.State == "error" {
			stop()
		}
	}
	if err := jobs.StartAsync(ctx, "bot", bot.Run); err != nil {
		return err
	}
	if err := jobs.StartAsync(ctx, "keepalive", keepalive.New(cfg.KeepaliveAddr, cfg.KeepaliveCacheTTL, logger).Run); err != nil {
		return err
	}
	logger.Info("Bella is running", "jobs", jobs.Status())

	<-ctx.Done()
	logger.Info("shutting down")
	jobs.StopAll()
	jobs.Wait()
	if err := scheduler.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown failed", tint.Err(err))
	}
	if _, err := store.Backup(); err != nil {
		logger.Warn("final backup failed", tint.Err(err))
	}
	logger.Info("Bella exited cleanly")
	return nil
}
