package main

import (
	"context"

	"github.com/zeusync/racecore/internal/core/observability/log"
	"github.com/zeusync/racecore/internal/core/replay"
)

// verifyReplays checks every file and returns how many failed.
func verifyReplays(ctx context.Context, trackPath string, paths []string, logger log.Log) (int, error) {
	tr, err := loadTrack(trackPath)
	if err != nil {
		return 0, err
	}

	recs := make([]replay.Named, 0, len(paths))
	failed := 0
	for _, p := range paths {
		rec, err := replay.ReadFile(p)
		if err != nil {
			logger.Error("unreadable replay", log.String("replay", p), log.Error(err))
			failed++
			continue
		}
		recs = append(recs, replay.Named{Name: p, Recording: rec})
	}

	results, err := replay.VerifyAll(ctx, recs, tr, logger)
	if err != nil {
		return failed, err
	}
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		logger.Info("replay ok", log.String("replay", r.Name))
	}
	return failed, nil
}
