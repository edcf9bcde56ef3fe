package replay

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"time"

	"github.com/zeusync/racecore/internal/core/input"
	"github.com/zeusync/racecore/internal/core/observability/log"
	"github.com/zeusync/racecore/internal/core/session"
	"github.com/zeusync/racecore/internal/core/track"
)

const formatVersion = 1

// positionTolerance absorbs fused multiply-add differences between
// architectures.
const positionTolerance = 1e-6

// cancelCheckEvery is how many frames Play runs between context checks.
const cancelCheckEvery = 256

var (
	ErrUnsupportedVersion = errors.New("unsupported replay version")
	ErrTrackMismatch      = errors.New("replay was recorded on a different track")
	ErrDiverged           = errors.New("replay outcome diverged")
	ErrEmpty              = errors.New("replay has no frames")
)

type Header struct {
	Version     int
	Track       string
	Fingerprint uint64
	StartDelay  time.Duration
	StartedAt   time.Time
}

// Frame is one tick: its delta in seconds and the keys held.
type Frame struct {
	DT   float64
	Keys input.Bits
}

// Outcome is what a replay must reproduce.
type Outcome struct {
	Ticks       int
	Finished    bool
	Laps        []time.Duration
	RaceElapsed time.Duration
	Position    [3]float64
}

func (o Outcome) String() string {
	return fmt.Sprintf("%d ticks, finished=%t, laps=%v, elapsed=%s", o.Ticks, o.Finished, o.Laps, o.RaceElapsed)
}

type Recording struct {
	Header  Header
	Frames  []Frame
	Outcome Outcome
}

// Recorder captures the inputs driven into a session.
type Recorder struct {
	rec Recording
}

// NewRecorder starts a recording for a session created with cfg on tr. cfg
// must use a StepClock started at startedAt.
func NewRecorder(tr *track.Track, cfg session.Config, startedAt time.Time) *Recorder {
	return &Recorder{rec: Recording{Header: Header{
		Version:     formatVersion,
		Track:       tr.Name(),
		Fingerprint: tr.Fingerprint(),
		StartDelay:  cfg.StartDelay,
		StartedAt:   startedAt,
	}}}
}

func (r *Recorder) Record(dt float64, held input.Snapshot) {
	r.rec.Frames = append(r.rec.Frames, Frame{DT: dt, Keys: held.Bits()})
}

// Finish stores the session's final outcome and returns the recording.
func (r *Recorder) Finish(s *session.Session) *Recording {
	r.rec.Outcome = outcomeOf(s, len(r.rec.Frames))
	return &r.rec
}

func outcomeOf(s *session.Session, ticks int) Outcome {
	p := s.Progress()
	v := s.Vehicle()
	return Outcome{
		Ticks:       ticks,
		Finished:    p.Finished,
		Laps:        slices.Clone(p.Laps),
		RaceElapsed: p.RaceElapsed(s.Now()),
		Position:    [3]float64{v.Position.X, v.Position.Y, v.Position.Z},
	}
}

func Write(w io.Writer, rec *Recording) error {
	if err := gob.NewEncoder(w).Encode(rec); err != nil {
		return fmt.Errorf("encode replay: %w", err)
	}
	return nil
}

func Read(r io.Reader) (*Recording, error) {
	var rec Recording
	if err := gob.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode replay: %w", err)
	}
	if rec.Header.Version != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, rec.Header.Version)
	}
	return &rec, nil
}

func WriteFile(path string, rec *Recording) error {
	var buf bytes.Buffer
	if err := Write(&buf, rec); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func ReadFile(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Play re-runs rec on tr with a step clock and returns the outcome. It
// stops early with ctx's error once ctx is done.
func Play(ctx context.Context, rec *Recording, tr *track.Track, logger log.Log) (Outcome, error) {
	if rec.Header.Fingerprint != tr.Fingerprint() {
		return Outcome{}, fmt.Errorf("%w: recorded %q (%016x), have %q (%016x)", ErrTrackMismatch,
			rec.Header.Track, rec.Header.Fingerprint, tr.Name(), tr.Fingerprint())
	}
	if len(rec.Frames) == 0 {
		return Outcome{}, ErrEmpty
	}

	cfg := session.Config{
		StartDelay: rec.Header.StartDelay,
		Clock:      session.NewStepClock(rec.Header.StartedAt),
	}
	s, err := session.New(cfg, tr, nil, logger)
	if err != nil {
		return Outcome{}, err
	}
	for i, f := range rec.Frames {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Outcome{}, err
			}
		}
		if err := s.Tick(f.DT, f.Keys.Snapshot()); err != nil {
			return Outcome{}, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return outcomeOf(s, len(rec.Frames)), nil
}

// Verify plays rec and compares the result with the recorded outcome.
func Verify(ctx context.Context, rec *Recording, tr *track.Track, logger log.Log) error {
	got, err := Play(ctx, rec, tr, logger)
	if err != nil {
		return err
	}
	if !same(rec.Outcome, got) {
		return fmt.Errorf("%w: recorded %s, replayed %s", ErrDiverged, rec.Outcome, got)
	}
	return nil
}

func same(a, b Outcome) bool {
	if a.Ticks != b.Ticks || a.Finished != b.Finished || a.RaceElapsed != b.RaceElapsed {
		return false
	}
	if !slices.Equal(a.Laps, b.Laps) {
		return false
	}
	for i := range a.Position {
		if math.Abs(a.Position[i]-b.Position[i]) > positionTolerance {
			return false
		}
	}
	return true
}
