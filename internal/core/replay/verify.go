package replay

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/racecore/internal/core/observability/log"
	"github.com/zeusync/racecore/internal/core/track"
)

// Result is the verification outcome of one recording.
type Result struct {
	Name string
	Err  error
}

// Named pairs a recording with a display name, usually its file path.
type Named struct {
	Name      string
	Recording *Recording
}

// VerifyAll verifies recordings concurrently. Every recording gets a
// Result; the returned error is only set when ctx is cancelled.
func VerifyAll(ctx context.Context, recs []Named, tr *track.Track, logger log.Log) ([]Result, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	results := make([]Result, len(recs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, r := range recs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := Verify(ctx, r.Recording, tr, logger)
			results[i] = Result{Name: r.Name, Err: err}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				logger.Warn("replay failed", log.String("replay", r.Name), log.Error(err))
			} else {
				logger.Debug("replay verified", log.String("replay", r.Name))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
