package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/channels"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/channels/discord"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/channels/telegram"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/channels/whatsapp"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/config"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/gateway"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/i18n"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/llm"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/modules"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/router"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/scheduler"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/trace"
)

// newServeCmd creates the `assistant serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway, messaging channels and scheduler",
		Long: `Start the assistant as a daemon: the HTTP gateway with the
streaming chat API, the enabled messaging channels (Telegram, WhatsApp,
Discord), and the scheduled jobs (birthday digest, task reminders).

Examples:
  assistant serve
  assistant serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)
	config.ResolveAPIKey(cfg, logger)

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	traces, err := trace.NewSQLiteStore(st.DB(), logger)
	if err != nil {
		return fmt.Errorf("opening trace store: %w", err)
	}

	// Config-level module switches are mirrored into the store, which is
	// the single source the router reads at request time.
	for _, tenant := range cfg.Tenants {
		for _, id := range tenant.DisabledModules {
			if err := st.SetModuleEnabled(tenant.ID, id, false); err != nil {
				logger.Warn("applying module setting failed", "tenant", tenant.ID, "module", id, "error", err)
			}
		}
	}

	registry, err := buildRegistry(st, logger)
	if err != nil {
		return err
	}

	client := llm.NewClient(llm.Options{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}, logger)

	rt := router.New(client, registry, st, traces, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := channels.NewManager(rt, tenantResolver(cfg), logger)
	if cfg.Channels.Telegram.Enabled {
		manager.Add(telegram.New(telegram.Config{Token: cfg.Channels.Telegram.Token}, logger))
	}
	if cfg.Channels.WhatsApp.Enabled {
		manager.Add(whatsapp.New(whatsapp.Config{StorePath: cfg.Channels.WhatsApp.StorePath}, logger))
	}
	if cfg.Channels.Discord.Enabled {
		manager.Add(discord.New(discord.Config{Token: cfg.Channels.Discord.Token}, logger))
	}
	srv := gateway.New(cfg, rt, registry, st, traces, logger)

	// One supervision group: a failure in any subsystem cancels gctx and
	// winds down the others.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error {
		if err := manager.Start(gctx); err != nil {
			return fmt.Errorf("starting channels: %w", err)
		}
		<-gctx.Done()
		manager.Stop()
		return nil
	})
	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg, st, traces, manager, logger)
		if err != nil {
			return fmt.Errorf("creating scheduler: %w", err)
		}
		g.Go(func() error {
			if err := sched.Start(gctx); err != nil {
				return fmt.Errorf("starting scheduler: %w", err)
			}
			<-gctx.Done()
			sched.Stop()
			return nil
		})
	}

	logger.Info("assistant started",
		"listen", cfg.Server.Listen,
		"model", cfg.LLM.Model,
		"tenants", len(cfg.Tenants),
	)
	err = g.Wait()
	logger.Info("assistant stopped")
	return err
}

// buildRegistry registers all capability modules in their prompt order.
// The default conversational module goes last so the classifier prompt
// presents specialized capabilities first.
func buildRegistry(st *store.Store, logger *slog.Logger) (*modules.Registry, error) {
	registry := modules.NewRegistry(logger)
	for _, m := range []modules.Module{
		modules.NewFinanceModule(st),
		modules.NewTaskModule(st),
		modules.NewIdeasModule(st),
		modules.NewBirthdayModule(st),
		modules.NewDebtorModule(st),
		modules.NewContactsModule(st),
		modules.NewKnowledgeModule(st),
		modules.NewAssistantModule(),
	} {
		if err := registry.Register(m); err != nil {
			return nil, fmt.Errorf("registering modules: %w", err)
		}
	}
	return registry, nil
}

// tenantResolver maps channel messages to tenants using the per-channel
// default tenant from config.
func tenantResolver(cfg *config.Config) channels.TenantResolver {
	return func(msg *channels.IncomingMessage) (string, string) {
		var tenantID string
		switch msg.Channel {
		case "telegram":
			tenantID = cfg.Channels.Telegram.DefaultTenant
		case "whatsapp":
			tenantID = cfg.Channels.WhatsApp.DefaultTenant
		case "discord":
			tenantID = cfg.Channels.Discord.DefaultTenant
		}
		if tenantID == "" {
			return "", ""
		}
		lang := i18n.DefaultLanguage
		if tenant, ok := cfg.TenantByID(tenantID); ok {
			lang = tenant.Language
		}
		return tenantID, lang
	}
}
