// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/praxis-ai/praxis/pkg/session"
)

// startSweeper launches the expired-draft sweep loop. Abandoned drafts stay
// resumable until their expiry passes; the sweeper reclaims them so the store
// does not grow without bound. Disabled when the interval is zero or the
// store cannot expire.
func (r *LocalRuntime) startSweeper() {
	expirer, ok := r.store.(session.Expirer)
	interval := r.cfg.Sweep.Interval
	if !ok || interval <= 0 {
		slog.Info("runtime.sweeper.disabled",
			slog.Duration("interval", interval),
			slog.Bool("store_expires", ok),
		)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.sweepCancel = cancel
	r.sweepDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		slog.Info("runtime.sweeper.start", slog.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				slog.Info("runtime.sweeper.stop")
				return
			case <-ticker.C:
				r.sweepOnce(ctx, expirer, interval)
			}
		}
	}()
}

// sweepOnce runs one sweep bounded by the sweep interval, so a stuck store
// call cannot pile up overlapping sweeps.
func (r *LocalRuntime) sweepOnce(ctx context.Context, expirer session.Expirer, timeout time.Duration) {
	sweepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sweepCtx, span := otel.Tracer("praxis/runtime").Start(sweepCtx, "draft.sweep")
	defer span.End()

	start := time.Now()
	swept, err := expirer.ExpireBefore(sweepCtx, time.Now().UTC())
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		slog.Warn("runtime.sweep.error",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return
	}
	span.SetAttributes(attribute.Int("swept", swept))
	r.metrics.RecordSwept(sweepCtx, swept)
	if swept > 0 {
		slog.Info("runtime.sweep.complete",
			slog.Int("swept", swept),
			slog.Duration("duration", duration),
		)
	}
}

func (r *LocalRuntime) stopSweeper() {
	if r.sweepCancel == nil {
		return
	}
	r.sweepCancel()
	if r.sweepDone != nil {
		<-r.sweepDone
	}
	r.sweepCancel = nil
	r.sweepDone = nil
}
