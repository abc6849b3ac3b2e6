// Package scheduler runs the assistant's periodic jobs: the morning
// birthday digest, due task reminders, and trace pruning. Results are
// delivered to each tenant's configured chat over its messaging channel.
// Job runs are recorded in SQLite so restarts do not double-deliver.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/channels"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/config"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/i18n"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/trace"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cfg     *config.Config
	store   *store.Store
	traces  *trace.SQLiteStore
	manager *channels.Manager
	cron    *cron.Cron
	db      *sql.DB
	logger  *slog.Logger
}

// New creates the scheduler. Jobs are registered by Start.
func New(cfg *config.Config, st *store.Store, traces *trace.SQLiteStore, manager *channels.Manager, logger *slog.Logger) (*Scheduler, error) {
	db := st.DB()
	schema := `CREATE TABLE IF NOT EXISTS job_runs (
		job TEXT NOT NULL,
		ran_at TIMESTAMP NOT NULL,
		ok INTEGER NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (job, ran_at)
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating job_runs table: %w", err)
	}

	return &Scheduler{
		cfg:     cfg,
		store:   st,
		traces:  traces,
		manager: manager,
		cron:    cron.New(),
		db:      db,
		logger:  logger.With("component", "scheduler"),
	}, nil
}

// Start registers the jobs and begins the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	type job struct {
		name string
		spec string
		fn   func(context.Context) error
	}
	jobs := []job{
		{"birthday_digest", s.cfg.Scheduler.BirthdayDigestCron, s.runBirthdayDigest},
		{"task_reminders", s.cfg.Scheduler.TaskReminderCron, s.runTaskReminders},
		{"trace_prune", s.cfg.Scheduler.TracePruneCron, s.runTracePrune},
	}

	for _, j := range jobs {
		j := j
		_, err := s.cron.AddFunc(j.spec, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()
			err := j.fn(jobCtx)
			s.recordRun(j.name, err)
			if err != nil {
				s.logger.Error("scheduled job failed", "job", j.name, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("scheduling %s (%q): %w", j.name, j.spec, err)
		}
		s.logger.Info("job scheduled", "job", j.name, "cron", j.spec)
	}

	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
	return nil
}

// Stop halts the cron loop. Running jobs finish their timeout window.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) recordRun(job string, runErr error) {
	ok := 1
	detail := ""
	if runErr != nil {
		ok = 0
		detail = runErr.Error()
	}
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO job_runs (job, ran_at, ok, detail) VALUES (?, ?, ?, ?)`,
		job, time.Now(), ok, detail,
	); err != nil {
		s.logger.Warn("recording job run failed", "job", job, "error", err)
	}
}

// runBirthdayDigest sends each tenant a list of today's birthdays.
func (s *Scheduler) runBirthdayDigest(ctx context.Context) error {
	now := time.Now()
	var firstErr error
	for _, tenant := range s.cfg.Tenants {
		bds, err := s.store.BirthdaysOn(tenant.ID, int(now.Month()), now.Day())
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(bds) == 0 {
			continue
		}

		lang := i18n.Normalize(tenant.Language)
		var lines []string
		for _, b := range bds {
			line := "🎂 " + b.Person
			if b.Note != "" {
				line += " (" + b.Note + ")"
			}
			lines = append(lines, line)
		}
		text := i18n.T(lang, "birthday.upcoming") + "\n" + strings.Join(lines, "\n")

		if err := s.deliver(ctx, tenant, text); err != nil {
			s.logger.Warn("birthday digest delivery failed", "tenant", tenant.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// runTaskReminders notifies tenants about tasks due within the next window.
func (s *Scheduler) runTaskReminders(ctx context.Context) error {
	now := time.Now()
	tasks, err := s.store.TasksDueBetween(now, now.Add(15*time.Minute))
	if err != nil {
		return err
	}

	byTenant := make(map[string][]store.Task)
	for _, t := range tasks {
		byTenant[t.TenantID] = append(byTenant[t.TenantID], t)
	}

	var firstErr error
	for tenantID, due := range byTenant {
		tenant, ok := s.cfg.TenantByID(tenantID)
		if !ok {
			continue
		}
		var lines []string
		for _, t := range due {
			lines = append(lines, fmt.Sprintf("⏰ %s (%s)", t.Title, t.DueAt.Format("15:04")))
		}
		if err := s.deliver(ctx, *tenant, strings.Join(lines, "\n")); err != nil {
			s.logger.Warn("task reminder delivery failed", "tenant", tenantID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// runTracePrune deletes traces past the retention window.
func (s *Scheduler) runTracePrune(ctx context.Context) error {
	days := s.cfg.Scheduler.TraceRetentionDays
	if days <= 0 {
		return nil
	}
	n, err := s.traces.Prune(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("old traces pruned", "count", n)
	}
	return nil
}

// deliver sends text to the tenant's first configured destination, trying
// telegram, then whatsapp, then discord.
func (s *Scheduler) deliver(ctx context.Context, tenant config.TenantConfig, text string) error {
	targets := []struct {
		channel string
		chatID  string
	}{
		{"telegram", tenant.TelegramChatID},
		{"whatsapp", tenant.WhatsAppJID},
		{"discord", tenant.DiscordChannelID},
	}
	for _, target := range targets {
		if target.chatID == "" {
			continue
		}
		ch, ok := s.manager.Get(target.channel)
		if !ok || !ch.IsConnected() {
			continue
		}
		return ch.Send(ctx, target.chatID, &channels.OutgoingMessage{Content: text})
	}
	s.logger.Debug("no delivery target configured", "tenant", tenant.ID)
	return nil
}
