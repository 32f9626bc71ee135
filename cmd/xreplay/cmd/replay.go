package cmd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xuperchain/xreplay/kernel/engines/xreplay"
	"github.com/xuperchain/xreplay/lib/metrics"
)

type ReplayCmd struct {
	BaseCmd
}

func GetReplayCmd() *ReplayCmd {
	replayCmdIns := new(ReplayCmd)

	// 定义命令行参数变量
	var (
		readAhead  int
		serveStats bool
		showDigest bool
	)

	replayCmdIns.cmd = &cobra.Command{
		Use:           "replay <event-log>",
		Short:         "Replay a json lines event log, '-' reads stdin.",
		Example:       CmdLineName + " replay events.jsonl --conf ./conf/env.yaml --metrics",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), args[0], readAhead, serveStats, showDigest)
		},
	}

	// 设置命令行参数并绑定变量
	flags := replayCmdIns.cmd.Flags()
	flags.IntVar(&readAhead, "read-ahead", xreplay.DefaultReadAhead, "number of events decoded ahead of dispatch")
	flags.BoolVar(&serveStats, "metrics", false, "serve prometheus metrics while replaying")
	flags.BoolVar(&showDigest, "digest", true, "print the state digest after replay")

	return replayCmdIns
}

func replayFile(ctx context.Context, eng *xreplay.XReplayEngine, path string, readAhead int) (*xreplay.RunStats, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return eng.Replay(ctx, xreplay.NewJSONLinesFeed(r, readAhead))
}

func runReplay(ctx context.Context, path string, readAhead int, serveStats, showDigest bool) error {
	eng, envConf, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Exit()

	var stats *xreplay.RunStats
	if !serveStats && !envConf.MetricSwitch {
		stats, err = replayFile(ctx, eng, path, readAhead)
	} else {
		stats, err = replayWithMetrics(ctx, eng, envConf.MetricAddr, path, readAhead)
	}
	if stats != nil {
		printStats(stats)
	}
	if err != nil {
		return err
	}

	if showDigest {
		digest, err := eng.StateDigest()
		if err != nil {
			return err
		}
		printf("state digest: %s\n", digest)
	}
	return nil
}

// replayWithMetrics serves /metrics for as long as the replay runs
func replayWithMetrics(ctx context.Context, eng *xreplay.XReplayEngine, addr, path string,
	readAhead int) (*xreplay.RunStats, error) {
	metrics.RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	var stats *xreplay.RunStats
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		var err error
		stats, err = replayFile(gctx, eng, path, readAhead)
		return err
	})
	err := group.Wait()
	return stats, err
}

func printStats(stats *xreplay.RunStats) {
	if isJSON() {
		printJSON(stats)
		return
	}
	printKV([2]string{"Replay", "Value"}, map[string]string{
		"run id":        stats.RunID,
		"applied":       strconv.Itoa(stats.Applied),
		"failed":        strconv.Itoa(stats.Failed),
		"skipped":       strconv.Itoa(stats.Skipped),
		"last sequence": strconv.FormatUint(stats.LastSeq, 10),
		"elapsed":       stats.Elapsed.String(),
	})
}
