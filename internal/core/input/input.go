package input

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownKey  = errors.New("unknown input key")
	ErrEmptyScript = errors.New("input script has no segments")
	ErrBadDuration = errors.New("segment duration must be positive")
)

// Snapshot is the set of keys held during one tick. The zero value means
// nothing is pressed.
type Snapshot struct {
	Accelerate bool
	Brake      bool
	Left       bool
	Right      bool
}

// Bits packs a snapshot into one byte for compact recording.
type Bits uint8

const (
	BitAccelerate Bits = 1 << iota
	BitBrake
	BitLeft
	BitRight
)

func (s Snapshot) Bits() Bits {
	var b Bits
	if s.Accelerate {
		b |= BitAccelerate
	}
	if s.Brake {
		b |= BitBrake
	}
	if s.Left {
		b |= BitLeft
	}
	if s.Right {
		b |= BitRight
	}
	return b
}

func (b Bits) Snapshot() Snapshot {
	return Snapshot{
		Accelerate: b&BitAccelerate != 0,
		Brake:      b&BitBrake != 0,
		Left:       b&BitLeft != 0,
		Right:      b&BitRight != 0,
	}
}

func (s Snapshot) String() string {
	keys := make([]string, 0, 4)
	if s.Accelerate {
		keys = append(keys, "accelerate")
	}
	if s.Brake {
		keys = append(keys, "brake")
	}
	if s.Left {
		keys = append(keys, "left")
	}
	if s.Right {
		keys = append(keys, "right")
	}
	if len(keys) == 0 {
		return "none"
	}
	return strings.Join(keys, "+")
}

// ParseKeys builds a snapshot from key names. Both action names and the
// WASD letters are accepted.
func ParseKeys(keys []string) (Snapshot, error) {
	var s Snapshot
	for _, k := range keys {
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "accelerate", "throttle", "w":
			s.Accelerate = true
		case "brake", "reverse", "s":
			s.Brake = true
		case "left", "a":
			s.Left = true
		case "right", "d":
			s.Right = true
		default:
			return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownKey, k)
		}
	}
	return s, nil
}

// Segment holds a key set for a span of time.
type Segment struct {
	For  time.Duration `yaml:"for"`
	Keys []string      `yaml:"keys"`

	snapshot Snapshot
}

// Script replays a fixed sequence of segments, standing in for a keyboard
// poller in headless runs.
type Script struct {
	Name     string    `yaml:"name"`
	Loop     bool      `yaml:"loop"`
	Segments []Segment `yaml:"segments"`

	total time.Duration
}

// LoadScript decodes and validates a YAML script.
func LoadScript(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode input script: %w", err)
	}
	if err := s.compile(); err != nil {
		return nil, err
	}
	return &s, nil
}

// NewScript builds a script from already parsed segments.
func NewScript(name string, loop bool, segments ...Segment) (*Script, error) {
	s := &Script{Name: name, Loop: loop, Segments: segments}
	if err := s.compile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Script) compile() error {
	if len(s.Segments) == 0 {
		return ErrEmptyScript
	}
	s.total = 0
	for i := range s.Segments {
		seg := &s.Segments[i]
		if seg.For <= 0 {
			return fmt.Errorf("segment %d: %w", i, ErrBadDuration)
		}
		snap, err := ParseKeys(seg.Keys)
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		seg.snapshot = snap
		s.total += seg.For
	}
	return nil
}

// Duration is the length of one pass over the segments.
func (s *Script) Duration() time.Duration { return s.total }

// At returns the keys held at elapsed time since the script started.
// A finished non-looping script holds nothing.
func (s *Script) At(elapsed time.Duration) Snapshot {
	if elapsed < 0 || s.total == 0 {
		return Snapshot{}
	}
	if elapsed >= s.total {
		if !s.Loop {
			return Snapshot{}
		}
		elapsed %= s.total
	}
	for _, seg := range s.Segments {
		if elapsed < seg.For {
			return seg.snapshot
		}
		elapsed -= seg.For
	}
	return Snapshot{}
}

// Done reports whether a non-looping script has run out.
func (s *Script) Done(elapsed time.Duration) bool {
	return !s.Loop && elapsed >= s.total
}
