// Package agent runs one polling pass over the course portal: log in, then
// reconcile notices and calendar deadlines in that order.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/config"
	"github.com/CosmoTheDev/coursewatch/internal/extract"
	"github.com/CosmoTheDev/coursewatch/internal/notify"
	"github.com/CosmoTheDev/coursewatch/internal/portal"
	"github.com/CosmoTheDev/coursewatch/internal/reconcile"
	"github.com/CosmoTheDev/coursewatch/internal/records"
	"github.com/CosmoTheDev/coursewatch/models"
)

// Orchestrator coordinates login, notice reconciliation and assignment
// reconciliation for one invocation.
type Orchestrator struct {
	cfg  *config.Config
	opts OrchestratorOptions
}

// OrchestratorOptions controls run behaviour for the different commands.
type OrchestratorOptions struct {
	// DryRun logs messages instead of sending them and never writes records.
	DryRun bool
	// Now overrides the clock used for the deadline window.
	Now func() time.Time
}

// Report summarises one invocation.
type Report struct {
	Results  []reconcile.Result
	Degraded bool
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg *config.Config, opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{cfg: cfg, opts: opts}
}

// Run performs a single pass. Configuration problems are reported before any
// network call or record access. The first failing class aborts the pass;
// classes reconciled before it keep their saved records.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	var rep Report
	cfg := o.cfg
	if err := cfg.Validate(); err != nil {
		return rep, err
	}
	if !cfg.Notice.Enabled && !cfg.Assignment.Enabled {
		slog.Warn("Nothing to do: enable notice and/or assignment in the config")
		return rep, nil
	}
	loc, err := cfg.Location()
	if err != nil {
		return rep, err
	}

	notifier, err := o.notifier()
	if err != nil {
		return rep, err
	}

	backend, err := records.Open(ctx, cfg.Store)
	if err != nil {
		return rep, fmt.Errorf("opening record store: %w", err)
	}
	defer backend.Close() //nolint:errcheck
	if o.opts.DryRun {
		backend = records.ReadOnly{Backend: backend}
	}

	client, err := portal.New(cfg.Portal)
	if err != nil {
		return rep, err
	}

	slog.Info("Orchestrator starting",
		"notice", cfg.Notice.Enabled,
		"assignment", cfg.Assignment.Enabled,
		"channel", cfg.Notify.Method,
		"store", backend.Describe(),
		"dry_run", o.opts.DryRun,
	)
	if err := client.Login(ctx); err != nil {
		return rep, err
	}

	var html extract.HTML
	if cfg.Notice.Enabled {
		n := &reconcile.Notices{
			Config:   cfg.Notice,
			Alias:    cfg.Alias,
			Source:   client,
			Extract:  html,
			Notifier: notifier,
			Store:    records.NewStore[models.NoticeRecord](backend, models.ClassNotice),
			Location: loc,
		}
		res, err := n.Run(ctx, rep.Degraded)
		rep.add(res)
		if err != nil {
			return rep, fmt.Errorf("notice reconciliation: %w", err)
		}
	}

	if cfg.Assignment.Enabled {
		a := &reconcile.Assignments{
			Config:   cfg.Assignment,
			Alias:    cfg.Alias,
			Source:   client,
			Extract:  html,
			Notifier: notifier,
			Store:    records.NewStore[models.AssignmentRecord](backend, models.ClassAssignment),
			Location: loc,
			Now:      o.opts.Now,
		}
		res, err := a.Run(ctx, rep.Degraded)
		rep.add(res)
		if err != nil {
			return rep, fmt.Errorf("assignment reconciliation: %w", err)
		}
	}

	if rep.Degraded {
		slog.Warn("Notification channel hit its daily quota; some messages were not delivered",
			"channel", cfg.Notify.Method)
	}
	return rep, nil
}

func (o *Orchestrator) notifier() (notify.Notifier, error) {
	if o.opts.DryRun {
		return notify.LogNotifier{}, nil
	}
	d, err := notify.New(o.cfg.Notify)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *Report) add(res reconcile.Result) {
	r.Results = append(r.Results, res)
	r.Degraded = r.Degraded || res.Degraded
}
