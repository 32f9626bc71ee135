package xreplay

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/xuperchain/xreplay/kernel/contract"
)

// RunStats summary of one replay run
type RunStats struct {
	RunID      string
	Applied    int
	Failed     int
	Skipped    int
	LastSeq    uint64
	Elapsed    time.Duration
	LastStatus contract.Status
}

// Run replays feed until it is exhausted, ctx is cancelled or an event
// halts the engine
func (t *XReplayEngine) Run(ctx context.Context, feed Feed) error {
	_, err := t.Replay(ctx, feed)
	return err
}

// Replay is Run with statistics. Events at or below the last applied
// sequence are skipped, so a log can be replayed again after a restart.
func (t *XReplayEngine) Replay(ctx context.Context, feed Feed) (*RunStats, error) {
	stats := &RunStats{RunID: uuid.New().String()}
	log := t.log.With("run_id", stats.RunID)
	begin := time.Now()
	defer func() {
		stats.Elapsed = time.Since(begin)
	}()

	log.Info("replay start")
	for {
		event, err := feed.Next(ctx)
		if errors.Is(err, io.EOF) {
			log.Info("replay done", "applied", stats.Applied, "failed", stats.Failed,
				"skipped", stats.Skipped, "lastSequence", stats.LastSeq, "cost", time.Since(begin))
			return stats, nil
		}
		if err != nil {
			log.Warn("replay stopped", "err", err, "applied", stats.Applied)
			return stats, err
		}

		if last, ok := t.LastSequence(); ok && event.Sequence <= last {
			stats.Skipped++
			continue
		}

		receipt, err := t.DispatchContext(ctx, event)
		if err != nil {
			log.Error("replay halted", "sequence", event.Sequence, "err", err)
			return stats, err
		}
		stats.LastSeq = event.Sequence
		stats.LastStatus = receipt.Status
		if receipt.Succeeded() {
			stats.Applied++
		} else {
			stats.Failed++
		}
	}
}
