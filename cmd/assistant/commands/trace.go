package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/trace"
)

// newTraceCmd creates the `assistant trace` command group for inspecting
// request traces.
func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect request traces",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recent traces for a tenant",
		RunE:  runTraceList,
	}
	list.Flags().String("tenant", "", "tenant id (defaults to the first configured tenant)")
	list.Flags().Int("limit", 20, "maximum traces to show")

	show := &cobra.Command{
		Use:   "show <trace-id>",
		Short: "Print one trace as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runTraceShow,
	}
	show.Flags().String("tenant", "", "tenant id (defaults to the first configured tenant)")

	cmd.AddCommand(list, show)
	return cmd
}

func openTraceStore(cmd *cobra.Command) (*trace.SQLiteStore, *store.Store, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, "", err
	}
	logger := newLogger(cmd, cfg)

	tenantID, _ := cmd.Flags().GetString("tenant")
	if tenantID == "" {
		if len(cfg.Tenants) == 0 {
			return nil, nil, "", fmt.Errorf("no tenants configured")
		}
		tenantID = cfg.Tenants[0].ID
	}

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, nil, "", fmt.Errorf("opening store: %w", err)
	}
	traces, err := trace.NewSQLiteStore(st.DB(), logger)
	if err != nil {
		st.Close()
		return nil, nil, "", fmt.Errorf("opening trace store: %w", err)
	}
	return traces, st, tenantID, nil
}

func runTraceList(cmd *cobra.Command, _ []string) error {
	traces, st, tenantID, err := openTraceStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	items, err := traces.List(tenantID, limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no traces")
		return nil
	}

	for _, t := range items {
		status := "ok"
		if !t.Success {
			status = "FAIL"
		}
		fmt.Printf("%s  %-4s  %6dms  %v  %s\n",
			t.ID, status, t.TotalDurationMS, t.Intents, truncate(t.UserMessage, 60))
	}
	return nil
}

func runTraceShow(cmd *cobra.Command, args []string) error {
	traces, st, tenantID, err := openTraceStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	t, err := traces.Get(tenantID, args[0])
	if err != nil {
		return fmt.Errorf("loading trace %s: %w", args[0], err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
