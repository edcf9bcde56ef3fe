package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/racecore/internal/core/events/bus"
	"github.com/zeusync/racecore/internal/core/input"
	"github.com/zeusync/racecore/internal/core/observability/log"
	"github.com/zeusync/racecore/internal/core/replay"
	"github.com/zeusync/racecore/internal/core/session"
	"github.com/zeusync/racecore/internal/core/track"
	"github.com/zeusync/racecore/internal/core/vehicle"
	"github.com/zeusync/racecore/internal/server"
)

type runOptions struct {
	TrackPath  string
	ScriptPath string
	Cruise     float64
	Step       float64
	Limit      time.Duration
	Realtime   bool
	FeedAddr   string
	RecordPath string
}

func defaultRunOptions() runOptions {
	return runOptions{
		Cruise: 25,
		Step:   1.0 / 60,
		Limit:  5 * time.Minute,
	}
}

// driver picks the keys for the next tick.
type driver func(v vehicle.State, elapsed time.Duration) (input.Snapshot, bool)

func loadTrack(path string) (*track.Track, error) {
	if path == "" {
		return track.Builtin()
	}
	return track.LoadFile(path)
}

func newDriver(opts runOptions, tr *track.Track) (driver, error) {
	if opts.ScriptPath == "" {
		pilot := session.NewPilot(tr, opts.Cruise)
		return func(v vehicle.State, _ time.Duration) (input.Snapshot, bool) {
			return pilot.Input(v), true
		}, nil
	}

	f, err := os.Open(opts.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("open input script: %w", err)
	}
	defer f.Close()
	script, err := input.LoadScript(f)
	if err != nil {
		return nil, err
	}
	return func(_ vehicle.State, elapsed time.Duration) (input.Snapshot, bool) {
		return script.At(elapsed), !script.Done(elapsed)
	}, nil
}

// runRace drives one race to the finish, the limit, the end of the script
// or cancellation, and returns the final telemetry.
func runRace(ctx context.Context, opts runOptions, logger log.Log) (session.Telemetry, error) {
	if opts.Step == 0 {
		return session.Telemetry{}, fmt.Errorf("%w: dt must be positive", session.ErrInvalidDelta)
	}
	if err := session.ValidateDelta(opts.Step); err != nil {
		return session.Telemetry{}, err
	}

	tr, err := loadTrack(opts.TrackPath)
	if err != nil {
		return session.Telemetry{}, err
	}
	drive, err := newDriver(opts, tr)
	if err != nil {
		return session.Telemetry{}, err
	}

	eventBus := bus.New()
	eventBus.AddObserver(bus.NewLogObserver(logger))

	startedAt := time.Now().UTC()
	cfg := session.DefaultConfig()
	cfg.Clock = session.NewStepClock(startedAt)
	sess, err := session.New(cfg, tr, eventBus, logger)
	if err != nil {
		return session.Telemetry{}, err
	}

	var feed *server.Server
	if opts.FeedAddr != "" {
		feedCfg := server.DefaultServerConfig()
		feedCfg.ListenAddr = opts.FeedAddr
		if feed, err = server.NewServer(feedCfg, sess, eventBus, logger); err != nil {
			return session.Telemetry{}, err
		}
		defer func() { _ = feed.Close() }()
	}

	var rec *replay.Recorder
	if opts.RecordPath != "" {
		rec = replay.NewRecorder(tr, cfg, startedAt)
	}

	g, gctx := errgroup.WithContext(ctx)
	simCtx, stopFeed := context.WithCancel(gctx)
	defer stopFeed()

	if feed != nil {
		g.Go(func() error { return feed.Run(simCtx) })
	}

	g.Go(func() error {
		defer stopFeed()
		return simulate(gctx, sess, drive, rec, opts, logger)
	})

	if err := g.Wait(); err != nil {
		return sess.Telemetry(), err
	}

	if rec != nil {
		if err := replay.WriteFile(opts.RecordPath, rec.Finish(sess)); err != nil {
			return sess.Telemetry(), err
		}
		logger.Info("replay written", log.String("path", opts.RecordPath))
	}

	tel := sess.Telemetry()
	logger.Info("run complete",
		log.String("track", tel.Track),
		log.Bool("finished", tel.Finished),
		log.Int("lap", tel.CurrentLap),
		log.Float64("race_elapsed_s", tel.RaceElapsed),
		log.Float64("best_lap_s", tel.BestLap))
	return tel, nil
}

func simulate(ctx context.Context, sess *session.Session, drive driver, rec *replay.Recorder, opts runOptions, logger log.Log) error {
	step := time.Duration(opts.Step * float64(time.Second))

	var pace <-chan time.Time
	if opts.Realtime {
		ticker := time.NewTicker(step)
		defer ticker.Stop()
		pace = ticker.C
	}

	var elapsed time.Duration
	for elapsed < opts.Limit && !sess.Finished() {
		if pace != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		held, more := drive(sess.Vehicle(), elapsed)
		if !more {
			logger.Info("input script finished", log.Duration("elapsed", elapsed))
			return nil
		}
		if err := sess.Tick(opts.Step, held); err != nil {
			return err
		}
		if rec != nil {
			rec.Record(opts.Step, held)
		}
		elapsed += step
	}
	if !sess.Finished() {
		logger.Warn("time limit reached before the finish", log.Duration("limit", opts.Limit))
	}
	return nil
}
