package replay

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/racecore/internal/core/input"
	"github.com/zeusync/racecore/internal/core/observability/log"
	"github.com/zeusync/racecore/internal/core/session"
	"github.com/zeusync/racecore/internal/core/track"
)

const frame = 1.0 / 60

var t0 = time.Date(2024, 12, 24, 18, 0, 0, 0, time.UTC)

func builtin(t *testing.T) *track.Track {
	t.Helper()
	tr, err := track.Builtin()
	require.NoError(t, err)
	return tr
}

// record drives the pilot for ticks frames and returns the recording.
func record(t *testing.T, tr *track.Track, ticks int) *Recording {
	t.Helper()
	cfg := session.DefaultConfig()
	cfg.Clock = session.NewStepClock(t0)

	s, err := session.New(cfg, tr, nil, log.NewNop())
	require.NoError(t, err)
	rec := NewRecorder(tr, cfg, t0)
	pilot := session.NewPilot(tr, 25)

	for i := 0; i < ticks; i++ {
		held := pilot.Input(s.Vehicle())
		require.NoError(t, s.Tick(frame, held))
		rec.Record(frame, held)
	}
	return rec.Finish(s)
}

func TestRoundTripAndVerify(t *testing.T) {
	tr := builtin(t)
	rec := record(t, tr, 600)
	require.Len(t, rec.Frames, 600)
	assert.Equal(t, "Harbour Loop", rec.Header.Track)
	assert.Equal(t, tr.Fingerprint(), rec.Header.Fingerprint)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rec))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, rec.Header.StartedAt.UnixNano(), got.Header.StartedAt.UnixNano())
	assert.Equal(t, rec.Frames, got.Frames)

	require.NoError(t, Verify(context.Background(), got, tr, log.NewNop()))
}

func TestPlayReproducesOutcome(t *testing.T) {
	tr := builtin(t)
	rec := record(t, tr, 900)

	out, err := Play(context.Background(), rec, tr, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, rec.Outcome.Ticks, out.Ticks)
	assert.Equal(t, rec.Outcome.Position, out.Position)
	assert.Equal(t, rec.Outcome.RaceElapsed, out.RaceElapsed)
}

func TestVerifyDetectsTampering(t *testing.T) {
	tr := builtin(t)
	rec := record(t, tr, 600)

	for i := 100; i < 160; i++ {
		rec.Frames[i].Keys = input.Snapshot{Brake: true}.Bits()
	}
	assert.ErrorIs(t, Verify(context.Background(), rec, tr, log.NewNop()), ErrDiverged)
}

func TestVerifyTrackMismatch(t *testing.T) {
	rec := record(t, builtin(t), 60)

	def := builtin(t).Definition()
	def.Laps = 3
	other, err := track.New(def)
	require.NoError(t, err)

	assert.ErrorIs(t, Verify(context.Background(), rec, other, log.NewNop()), ErrTrackMismatch)
}

func TestReadErrors(t *testing.T) {
	tr := builtin(t)

	rec := record(t, tr, 10)
	rec.Header.Version = 99
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rec))
	_, err := Read(&buf)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Read(strings.NewReader("not a replay"))
	assert.Error(t, err)

	_, err = Play(context.Background(), &Recording{Header: Header{Fingerprint: tr.Fingerprint()}}, tr, log.NewNop())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestFileRoundTrip(t *testing.T) {
	tr := builtin(t)
	rec := record(t, tr, 120)
	path := filepath.Join(t.TempDir(), "lap.replay")

	require.NoError(t, WriteFile(path, rec))
	got, err := ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, Verify(context.Background(), got, tr, log.NewNop()))

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.replay"))
	assert.Error(t, err)
}

func TestVerifyAll(t *testing.T) {
	tr := builtin(t)
	good := record(t, tr, 300)
	bad := record(t, tr, 300)
	bad.Outcome.Ticks++

	results, err := VerifyAll(context.Background(), []Named{
		{Name: "a", Recording: good},
		{Name: "b", Recording: bad},
		{Name: "c", Recording: good},
	}, tr, log.NewNop())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].Name)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrDiverged)
	assert.NoError(t, results[2].Err)
}

func TestVerifyAllCancelled(t *testing.T) {
	tr := builtin(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := VerifyAll(ctx, []Named{{Name: "a", Recording: record(t, tr, 10)}}, tr, log.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlayStopsOnCancel(t *testing.T) {
	tr := builtin(t)
	rec := record(t, tr, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Play(ctx, rec, tr, log.NewNop())
	assert.ErrorIs(t, err, context.Canceled)

	long := &Recording{Header: rec.Header, Frames: make([]Frame, 1_000_000)}
	for i := range long.Frames {
		long.Frames[i] = Frame{DT: frame, Keys: input.Snapshot{Accelerate: true}.Bits()}
	}
	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	results, err := VerifyAll(ctx, []Named{{Name: "long", Recording: long}}, tr, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
