package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatstream/pkg/config"
	"chatstream/pkg/logger"
	"chatstream/pkg/metrics"
	"chatstream/pkg/models"
	"chatstream/pkg/store"
)

// Sweeper reconciles stream status docs on a cron schedule: active
// records without recent updates are marked errored (abandoned
// generations, crashed nodes), and finished records past their retention
// window are pruned. Chat-scoped index rows are append-only history and
// are never touched.
type Sweeper struct {
	cfg  config.RetentionConfig
	cron string
}

// New builds a sweeper from retention config. An empty cron defaults to
// every five minutes.
func New(cfg config.RetentionConfig) (*Sweeper, error) {
	cron := cfg.Cron
	if cron == "" {
		cron = "*/5 * * * *"
	}
	if !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid retention cron expression: %s", cron)
	}
	return &Sweeper{cfg: cfg, cron: cron}, nil
}

// Start runs the scheduler until ctx is canceled. Each cycle computes the
// next cron tick and sleeps until then.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		logger.Info("retention_disabled")
		return
	}
	logger.Info("retention_started", "cron", s.cron, "dry_run", s.cfg.DryRun)
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_stopped")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(s.cron, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", s.cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			logger.Info("retention_stopped")
			return
		}
		if _, err := s.RunOnce(s.cfg.DryRun); err != nil {
			logger.Error("retention_sweep_failed", "error", err)
		}
	}
}

// RunOnce performs a single sweep and returns counts per action.
func (s *Sweeper) RunOnce(dryRun bool) (map[string]int, error) {
	metrics.RetentionSweeps.Inc()
	counts := map[string]int{"scanned": 0, "stale": 0, "pruned": 0}
	staleAfter := s.cfg.StaleAfter.Duration()
	pruneAfter := s.cfg.PruneAfter.Duration()
	now := time.Now().UTC()

	keys, err := store.ListKeys("stream:")
	if err != nil {
		return counts, err
	}
	for _, k := range keys {
		row, err := store.GetKey(k)
		if err != nil {
			continue
		}
		var rec models.StreamRecord
		if err := json.Unmarshal([]byte(row), &rec); err != nil {
			logger.Warn("retention_record_unmarshal_failed", "key", k, "error", err)
			continue
		}
		counts["scanned"]++
		age := now.Sub(time.Unix(0, rec.UpdatedTS))

		switch rec.Status {
		case models.StreamActive:
			if staleAfter > 0 && age > staleAfter {
				counts["stale"]++
				metrics.RetentionPruned.WithLabelValues("stale").Inc()
				logger.Info("retention_stale_stream", "stream", rec.ID, "chat", rec.Chat, "age", age.String(), "dry_run", dryRun)
				if !dryRun {
					rec.Status = models.StreamError
					if err := store.UpdateStream(rec); err != nil {
						logger.Error("retention_mark_stale_failed", "stream", rec.ID, "error", err)
					}
				}
			}
		case models.StreamDone, models.StreamError:
			if pruneAfter > 0 && age > pruneAfter {
				counts["pruned"]++
				metrics.RetentionPruned.WithLabelValues("pruned").Inc()
				logger.Info("retention_prune_stream", "stream", rec.ID, "chat", rec.Chat, "age", age.String(), "dry_run", dryRun)
				if !dryRun {
					if err := store.DeleteKey(k); err != nil {
						logger.Error("retention_prune_failed", "stream", rec.ID, "error", err)
					}
				}
			}
		}
	}
	metrics.StoreDiskBytes.Set(float64(store.DiskUsage()))
	logger.Info("retention_sweep_done", "scanned", counts["scanned"], "stale", counts["stale"], "pruned", counts["pruned"], "dry_run", dryRun)
	return counts, nil
}
