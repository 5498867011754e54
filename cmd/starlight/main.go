package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/starlight-bridge/starlight/internal/api"
	"github.com/starlight-bridge/starlight/internal/biz/chat"
	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/biz/parser"
	"github.com/starlight-bridge/starlight/internal/biz/usecase"
	"github.com/starlight-bridge/starlight/internal/conf"
	"github.com/starlight-bridge/starlight/internal/data"
	"github.com/starlight-bridge/starlight/internal/infra/feishu"
	"github.com/starlight-bridge/starlight/internal/infra/js"
	"github.com/starlight-bridge/starlight/internal/infra/llm"
	"github.com/starlight-bridge/starlight/internal/log"
	"github.com/starlight-bridge/starlight/internal/service"
)

// Options are command line overrides of the environment configuration
type Options struct {
	Port        int    `short:"p" long:"port" description:"HTTP control API port (overrides API_PORT)"`
	ProjectsDir string `long:"projects-dir" description:"Directory holding project folders (overrides PROJECTS_DIR)"`
	DBPath      string `long:"db" description:"Path of the rule database (overrides STARLIGHT_DB_PATH)"`
	Debug       bool   `short:"d" long:"debug" description:"Enable debug logging"`
	NoFeishu    bool   `long:"no-feishu" description:"Do not start the Feishu notification source"`
}

func main() {
	var opts Options
	p := flags.NewParser(&opts, flags.Default)
	if _, err := p.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Info("[Starlight] No .env file found, using environment variables")
	}

	cfg := conf.LoadFromEnv()
	applyOptions(cfg, opts)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Debug {
		log.SetLevel(slog.LevelDebug)
	}

	if err := run(cfg, opts); err != nil {
		log.Error("[Starlight] exited with error", "error", err)
		os.Exit(1)
	}
}

func applyOptions(cfg *conf.Config, opts Options) {
	if opts.Port != 0 {
		cfg.API.Port = opts.Port
	}
	if opts.ProjectsDir != "" {
		cfg.Storage.ProjectsDir = opts.ProjectsDir
	}
	if opts.DBPath != "" {
		cfg.Storage.DBPath = opts.DBPath
	}
	if opts.Debug {
		cfg.Debug = true
	}
}

func run(cfg *conf.Config, opts Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg.Storage.ProjectsDir, cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("create repositories: %w", err)
	}
	defer repos.Close()
	log.Info("[Starlight] storage ready", "projects", cfg.Storage.ProjectsDir, "db", cfg.Storage.DBPath)

	// Initialize runtime session
	session := usecase.NewSession(repos.Project, usecase.SessionOptions{
		Project: usecase.ProjectOptions{
			CallTimeout:     cfg.Runtime.CallTimeout,
			DefaultPoolSize: cfg.Runtime.DefaultPoolSize,
		},
		BusCapacity: cfg.Runtime.BusCapacity,
		Overflow:    usecase.DropOldest,
	})
	defer session.Shutdown()

	if err := session.Languages.AddLanguage(js.NewLanguage()); err != nil {
		return err
	}
	var llmClient *llm.Client
	if cfg.LLM.APIKey != "" {
		llmClient = llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
		log.Info("[Starlight] prompt language enabled", "model", cfg.LLM.Model)
	}
	if err := session.Languages.AddLanguage(llm.NewLanguage(llmClient)); err != nil {
		return err
	}

	// Notification pipeline
	rooms := chat.NewDirectory(cfg.Runtime.RoomCacheSize)
	notifications := service.NewNotificationService(session, parser.DefaultRegistry(), rooms, session.Bus, service.NotificationConfig{
		GlobalPower:                cfg.Notification.GlobalPower,
		LegacyEvent:                cfg.Notification.LegacyEvent,
		UseNotificationPostedEvent: cfg.Notification.UseNotificationPostedEvent,
		LogReceivedMessage:         cfg.Notification.LogReceivedMessage,
	})
	rules := usecase.NewRuleUsecase(repos.Rule, usecase.RuleOptions{
		AutoRule:           cfg.Notification.AutoRule,
		PlatformSDKVersion: cfg.Notification.PlatformSDKVersion,
	})
	if err := notifications.ReloadRules(ctx, rules); err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	session.Bus.Subscribe(logLifecycle)
	if err := session.Init(ctx, service.RegisterEvents); err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	// Feishu source
	if cfg.Feishu.Enabled() && !opts.NoFeishu {
		if err := startFeishu(ctx, cfg.Feishu, notifications); err != nil {
			return err
		}
	}

	// HTTP API
	apiServer := api.NewServer(session.Projects, session.Languages, rules, notifications, cfg.API.Port)
	apiErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiErr <- err
		}
	}()
	log.Info("[Starlight] HTTP API server started", "port", cfg.API.Port)

	select {
	case <-ctx.Done():
		log.Info("[Starlight] shutting down")
	case err := <-apiErr:
		return fmt.Errorf("api server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Warn("[Starlight] api shutdown", "error", err)
	}
	return nil
}

func startFeishu(ctx context.Context, cfg conf.FeishuConfig, notifications *service.NotificationService) error {
	client := feishu.NewClient(cfg.AppID, cfg.AppSecret)
	src, err := feishu.NewSource(client, notifications, 0)
	if err != nil {
		return fmt.Errorf("create feishu source: %w", err)
	}
	notifications.AddSourceRule(domain.RuleData{
		PackageName:  domain.PackageFeishu,
		UserID:       0,
		ParserSpecID: domain.ParserSpecFeishu,
	})

	go func() {
		if err := client.Start(ctx, src.Handlers(ctx)); err != nil && ctx.Err() == nil {
			log.Error("[Feishu] event loop stopped", "error", err)
		}
	}()
	log.Info("[Starlight] Feishu source started")
	return nil
}

func logLifecycle(ev domain.LifecycleEvent) {
	if ev.Error != "" {
		log.Warn("[Lifecycle] "+string(ev.Type), "project", ev.ProjectName, "error", ev.Error)
		return
	}
	log.Debug("[Lifecycle] "+string(ev.Type), "project", ev.ProjectName, "id", ev.ID)
}
