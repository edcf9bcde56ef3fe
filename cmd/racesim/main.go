package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeusync/racecore/internal/core/observability/log"
)

const usage = `usage: racesim <command> [flags]

commands:
  run      drive a headless race (pilot or input script)
  verify   re-run replay files and check their outcomes
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(ctx, os.Args[2:])
	case "verify":
		err = verifyCommand(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "racesim:", err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	opts := defaultRunOptions()
	fs.StringVar(&opts.TrackPath, "track", "", "track YAML file (default: built-in Harbour Loop)")
	fs.StringVar(&opts.ScriptPath, "script", "", "input script YAML; the pilot drives when empty")
	fs.Float64Var(&opts.Cruise, "cruise", opts.Cruise, "pilot cruise speed in m/s")
	fs.Float64Var(&opts.Step, "dt", opts.Step, "tick delta in seconds")
	fs.DurationVar(&opts.Limit, "limit", opts.Limit, "stop after this much simulated time")
	fs.BoolVar(&opts.Realtime, "realtime", false, "pace ticks to wall-clock time")
	fs.StringVar(&opts.FeedAddr, "feed", "", "serve the websocket telemetry feed on this address")
	fs.StringVar(&opts.RecordPath, "record", "", "write a replay file")
	level := fs.String("log", "info", "log level: debug, info, warn, error, off")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := log.NewWithEncoding(log.ParseLevel(*level), log.EncodingConsole)
	defer func() { _ = logger.Sync() }()

	_, err := runRace(ctx, opts, logger)
	return err
}

func verifyCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	trackPath := fs.String("track", "", "track YAML file (default: built-in Harbour Loop)")
	level := fs.String("log", "info", "log level: debug, info, warn, error, off")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("verify: no replay files given")
	}

	logger := log.NewWithEncoding(log.ParseLevel(*level), log.EncodingConsole)
	defer func() { _ = logger.Sync() }()

	start := time.Now()
	failed, err := verifyReplays(ctx, *trackPath, fs.Args(), logger)
	if err != nil {
		return err
	}
	logger.Info("verification done",
		log.Int("replays", fs.NArg()),
		log.Int("failed", failed),
		log.Duration("took", time.Since(start)))
	if failed > 0 {
		return fmt.Errorf("%d of %d replays failed", failed, fs.NArg())
	}
	return nil
}
