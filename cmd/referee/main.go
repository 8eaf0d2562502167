// Command referee replays recorded ball detections through the event
// detector and the referee, and stores every decided point.
//
//	referee <config-dir> <replay.jsonl>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/m3ts/referee/internal/config"
	"github.com/m3ts/referee/internal/detector"
	"github.com/m3ts/referee/internal/dispatcher"
	"github.com/m3ts/referee/internal/logging"
	"github.com/m3ts/referee/internal/match"
	intOtel "github.com/m3ts/referee/internal/otel"
	"github.com/m3ts/referee/internal/referee"
	"github.com/m3ts/referee/internal/replay"
	"github.com/m3ts/referee/internal/selection"
	"github.com/m3ts/referee/internal/stats"
	"github.com/m3ts/referee/internal/storage"
	"github.com/m3ts/referee/internal/table"
	"github.com/m3ts/referee/internal/tracker"
	"github.com/m3ts/referee/internal/zpos"
	"github.com/m3ts/referee/pkg/core"
)

// Name is used for the log file and as the default OTel service name.
const Name = "referee"

// drainMargin is added to the pipeline timers when waiting for the last decision.
const drainMargin = 100 * time.Millisecond

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <config-dir> <replay.jsonl>\n", os.Args[0])
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configDir, replayPath string) error {
	sessionStart := time.Now()

	slogManager := logging.NewSlogManager()
	slogManager.Setup(logging.Options{Level: "info"})
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config", "dir", configDir)
	}

	records, err := readReplay(replayPath)
	if err != nil {
		return err
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}
	logFilePath := logging.LogFilePath(logsDir, Name, sessionStart)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	otelProvider, err := setupOTel(logFile, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down OTel provider", "error", err)
		}
	}()

	var graylog io.Writer
	if gc := config.GetGraylogConfig(); gc.Enabled {
		w, err := logging.NewGraylogWriter(gc.Address)
		if err != nil {
			logger.Warn("Graylog disabled", "error", err)
		} else {
			defer w.Close()
			graylog = w
		}
	}

	var current atomic.Pointer[core.Match]
	var games atomic.Pointer[stats.Recorder]
	level := viper.GetString("logLevel")
	var otelLogProvider *sdklog.LoggerProvider
	if otelProvider.Enabled() {
		otelLogProvider = otelProvider.LoggerProvider()
	}
	slogManager.Setup(logging.Options{
		File:     logFile,
		Level:    level,
		Graylog:  graylog,
		Provider: otelLogProvider,
		Match: func() (*core.Match, int) {
			r := games.Load()
			if r == nil {
				return nil, 0
			}
			return current.Load(), r.Game()
		},
	})
	logger = slogManager.Logger()
	logger.Info("Logging to file", "path", logFilePath)
	dbLogger := logging.NewZerolog(logFile, level)

	backend, err := createStorageBackend(config.GetStorageConfig(), dbLogger, logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	rc := config.GetRefereeConfig()
	tbl, err := newTable(rc.Table)
	if err != nil {
		return err
	}

	bus, err := dispatcher.New(logging.NewDispatcherLogger(dbLogger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer bus.Close()

	playCtx, finish := context.WithCancel(ctx)
	defer finish()

	recorder := stats.New(backend, logger)
	observers := match.Observers{recorder, matchEnd{cancel: finish}}
	var notifier referee.Notifier = logNotifier{logger: logger}
	if display, ok := backend.(referee.Notifier); ok {
		notifier = display
	}
	if display, ok := backend.(match.MatchObserver); ok {
		observers = append(observers, display)
	}
	if display, ok := backend.(eventDisplay); ok {
		showEvents(bus, display)
	}

	matchCfg, err := newMatchConfig(config.GetMatchConfig())
	if err != nil {
		return err
	}
	m := match.NewMatch(matchCfg, observers)
	info := m.Info()
	current.Store(&info)
	games.Store(recorder)
	if err := recorder.StartMatch(info); err != nil {
		return err
	}

	var traced []dispatcher.Option
	if strings.EqualFold(level, "debug") {
		traced = append(traced, dispatcher.Logged())
	}
	ref, err := referee.New(referee.Dependencies{
		Game:     m,
		Notifier: notifier,
		Stats:    recorder,
		Source:   bus.Source(traced...),
		Logger:   logger,
	}, referee.Config{
		OutOfFrameDelay: rc.OutOfFrameDelay,
		UseGesture:      rc.UseGesture,
	})
	if err != nil {
		return fmt.Errorf("failed to create referee: %w", err)
	}
	ref.Start()
	defer ref.Stop()

	det := detector.New(detector.Dependencies{
		Tracker: tracker.New(tracker.Config{
			MaxGap:    rc.TrackerMaxGap,
			MaxJumpPx: rc.TrackerMaxJumpPx,
			MaxTracks: rc.TrackerMaxTracks,
		}),
		Table: tbl,
		ZPos: zpos.New(tbl, zpos.Config{
			CameraDistanceMM: rc.CameraDistanceMM,
			Tolerance:        rc.DepthTolerance,
		}),
		Selection: selection.Default(tbl.MmPerPixel()),
		Publisher: bus,
		Logger:    logger,
	}, detector.Config{
		FrameWidth:      rc.FrameWidth,
		FrameHeight:     rc.FrameHeight,
		Timeout:         rc.Timeout,
		AudioWindow:     rc.AudioWindow,
		OutOfFrameRatio: rc.OutOfFrameRatio,
	})
	defer det.Close()

	logger.Info("Replaying", "path", replayPath, "records", len(records), "match", info.ID)
	player := &replay.Player{Detector: det, Controls: ref, Logger: logger, Speed: 1}
	err = player.Play(playCtx, records)
	switch {
	case err == nil:
		// let pending detection and out-of-frame timers decide the last point
		wait(playCtx, rc.Timeout+rc.OutOfFrameDelay+drainMargin)
	case errors.Is(err, context.Canceled) && m.Finished():
		logger.Info("Match finished before the end of the replay")
	default:
		logger.Warn("Replay interrupted", "error", err)
	}

	det.Close()
	ref.Stop()

	final := m.Info()
	if final.EndTime.IsZero() {
		final.EndTime = time.Now()
	}
	current.Store(&final)
	if err := recorder.EndMatch(final); err != nil {
		logger.Error("Failed to end match", "error", err)
	}
	logger.Info("Match recorded",
		"games_left", final.GamesLeft,
		"games_right", final.GamesRight,
		"points", countPoints(recorder.Stats()))
	if exporter, ok := backend.(storage.Exporter); ok && exporter.ExportedFilePath() != "" {
		logger.Info("Match exported", "path", exporter.ExportedFilePath())
	}

	if err := otelProvider.Flush(context.Background()); err != nil {
		logger.Error("Failed to flush OTel provider", "error", err)
	}
	return slogManager.Flush(context.Background())
}

func readReplay(path string) ([]replay.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	defer f.Close()

	records, err := replay.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}

func setupOTel(logFile io.Writer, logger *slog.Logger) (*intOtel.Provider, error) {
	oc := config.GetOTelConfig()
	provider, err := intOtel.New(intOtel.Config{
		Enabled:        oc.Enabled,
		ServiceName:    oc.ServiceName,
		BatchTimeout:   oc.BatchTimeout,
		LogWriter:      logFile,
		MetricInterval: oc.MetricInterval,
		Endpoint:       oc.Endpoint,
		Insecure:       oc.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTel provider: %w", err)
	}
	if oc.Enabled {
		logger.Info("OTel provider initialized", "endpoint", oc.Endpoint)
	}
	return provider, nil
}

func newTable(tc config.TableConfig) (*table.Table, error) {
	pt := func(p config.Point) table.Point { return table.Point{X: p.X, Y: p.Y} }

	opts := []table.Option{table.WithBounceMargin(tc.BounceMargin)}
	if tc.NetBottom != nil {
		opts = append(opts, table.WithNetBottom(pt(*tc.NetBottom)))
	}
	t, err := table.New(table.Corners{
		TopLeft:     pt(tc.TopLeft),
		TopRight:    pt(tc.TopRight),
		BottomRight: pt(tc.BottomRight),
		BottomLeft:  pt(tc.BottomLeft),
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build table: %w", err)
	}
	return t, nil
}

func newMatchConfig(mc config.MatchConfig) (match.Config, error) {
	matchType, err := match.ParseType(mc.Type)
	if err != nil {
		return match.Config{}, err
	}
	length, err := match.ParseGameLength(mc.GameLength)
	if err != nil {
		return match.Config{}, err
	}
	serves, err := match.ParseServeRule(mc.ServeRule)
	if err != nil {
		return match.Config{}, err
	}
	first, err := core.ParseSide(mc.FirstServer)
	if err != nil {
		return match.Config{}, err
	}
	if first != core.SideLeft && first != core.SideRight {
		return match.Config{}, fmt.Errorf("first server must be left or right, got %s", first)
	}
	return match.Config{
		Type:        matchType,
		GameLength:  length,
		ServeRule:   serves,
		FirstServer: first,
		PlayerLeft:  mc.PlayerLeft,
		PlayerRight: mc.PlayerRight,
	}, nil
}

func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func countPoints(games [][]core.PointRecord) int {
	n := 0
	for _, g := range games {
		n += len(g)
	}
	return n
}
