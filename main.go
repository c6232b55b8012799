package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"chartchat/assets"
	"chartchat/background"
	"chartchat/chat"
	"chartchat/config"
	"chartchat/logx"
	"chartchat/provenance"
	"chartchat/provider"
	"chartchat/tools"
	"chartchat/ui"
)

const Version = "v0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is a convenience for OPENAI_API_KEY; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logx.Init(cfg.DataDir(), cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logx.Info().Str("version", Version).Str("session", cfg.Study.SessionID).Msg("starting")

	params, err := cfg.StudyParams()
	if err != nil {
		return err
	}

	client, err := provider.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	assetClient := assets.NewClient(cfg.Assets.BaseURL, time.Duration(cfg.Assets.TimeoutSeconds)*time.Second)

	store, err := provenance.NewStore(cfg.DataDir(), cfg.Provenance.Passphrase)
	if err != nil {
		return fmt.Errorf("failed to open provenance store: %w", err)
	}
	defer store.Close()

	sessionID := cfg.Study.SessionID
	notifier := ui.NewNotifier()

	orch := chat.New(chat.Deps{
		Client:     client,
		Tools:      tools.NewExecutor(assetClient, params),
		Gate:       background.NewResolver(client),
		Background: assetClient,
		Recorder:   store.ForSession(sessionID),
		OnChange:   notifier.Notify,
	}, chat.Options{
		Strategy:          cfg.Chat.BackgroundStrategy,
		Multimodal:        cfg.Chat.Multimodal,
		SystemPrompt:      cfg.Chat.SystemPrompt,
		Params:            params,
		DecisionMaxTokens: cfg.Chat.DecisionMaxTokens,
		MaxOutputTokens:   cfg.Chat.MaxOutputTokens,
		Temperature:       cfg.Chat.Temperature,
	})
	defer orch.Close()

	// Resume the session from its latest snapshot. The viewer always starts
	// closed; its recorded state reflects live toggles, not a restored one.
	snapshot, err := store.Latest(sessionID)
	if err != nil {
		return fmt.Errorf("failed to read latest snapshot: %w", err)
	}
	if snapshot != nil {
		orch.Seed(snapshot.Messages, false)
		logx.Info().Int("messages", len(snapshot.Messages)).Msg("resumed session from snapshot")
	}

	app := ui.NewApp(orch, notifier, assetClient, params, sessionID)
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("ui error: %w", err)
	}
	return nil
}
