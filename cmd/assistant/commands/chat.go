package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/config"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/llm"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/router"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/trace"
)

// newChatCmd creates the `assistant chat` command for one-shot messages.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message and print the reply",
		Long: `Process a single message through the full pipeline (classify,
run modules, aggregate) and print progress and the final reply.

Examples:
  assistant chat "потратил 5000 на обед" --tenant acme
  assistant chat "напомни позвонить завтра в 10" --tenant acme --lang kz`,
		Args: cobra.MinimumNArgs(1),
		RunE: runChat,
	}
	cmd.Flags().String("tenant", "", "tenant id (defaults to the first configured tenant)")
	cmd.Flags().String("lang", "", "reply language (ru or kz)")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)
	config.ResolveAPIKey(cfg, logger)

	tenantID, _ := cmd.Flags().GetString("tenant")
	if tenantID == "" {
		if len(cfg.Tenants) == 0 {
			return fmt.Errorf("no tenants configured; add one to config.yaml")
		}
		tenantID = cfg.Tenants[0].ID
	}
	tenant, ok := cfg.TenantByID(tenantID)
	if !ok {
		return fmt.Errorf("unknown tenant %q", tenantID)
	}

	lang, _ := cmd.Flags().GetString("lang")
	if lang == "" {
		lang = tenant.Language
	}

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	traces, err := trace.NewSQLiteStore(st.DB(), logger)
	if err != nil {
		return fmt.Errorf("opening trace store: %w", err)
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

	emitter := router.NewStatusEmitter(logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range emitter.Events() {
			if ev.Type == router.EventStatus {
				fmt.Println("  " + ev.Content)
			}
		}
	}()

	reply, err := rt.ProcessMessage(context.Background(), router.Request{
		TenantID: tenant.ID,
		UserID:   "cli",
		Message:  strings.Join(args, " "),
		Source:   "web",
		Language: lang,
	}, emitter)
	<-done
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(reply.Text)
	fmt.Printf("\n(intents: %s, trace: %s)\n", strings.Join(reply.Intents, ", "), reply.TraceID)
	return nil
}
