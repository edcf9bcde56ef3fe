package track

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/racecore/internal/core/race"
	"github.com/zeusync/racecore/internal/core/systems/physics"
	"github.com/zeusync/racecore/internal/core/vehicle"
)

//go:embed tracks/harbour.yaml
var harbourYAML []byte

var ErrInvalidTrack = errors.New("invalid track definition")

type Spawn struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Z      float64 `yaml:"z"`
	YawDeg float64 `yaml:"yaw_deg"`
}

// Rules mirrors the race.Config rule constants.
type Rules struct {
	DetectionRadius      float64       `yaml:"detection_radius"`
	SpawnExclusionRadius float64       `yaml:"spawn_exclusion_radius"`
	MinSpeedKmh          float64       `yaml:"min_speed_kmh"`
	Debounce             time.Duration `yaml:"debounce"`
	MinLapTime           time.Duration `yaml:"min_lap_time"`
}

// Definition is the on-disk track format. Omitted rules and vehicle
// keys keep their defaults.
type Definition struct {
	Name        string            `yaml:"name"`
	Laps        int               `yaml:"laps"`
	Spawn       Spawn             `yaml:"spawn"`
	Rules       Rules             `yaml:"rules"`
	Checkpoints []race.Checkpoint `yaml:"checkpoints"`
	Vehicle     vehicle.Params    `yaml:"vehicle"`
	Geometry    GeometryDef       `yaml:"geometry"`
}

func defaultDefinition() Definition {
	rc := race.DefaultConfig(physics.Vec3{}, nil)
	return Definition{
		Laps: rc.LapsTotal,
		Rules: Rules{
			DetectionRadius:      rc.DetectionRadius,
			SpawnExclusionRadius: rc.SpawnExclusionRadius,
			MinSpeedKmh:          rc.MinSpeedKmh,
			Debounce:             rc.Debounce,
			MinLapTime:           rc.MinLapTime,
		},
		Vehicle: vehicle.DefaultParams(),
	}
}

// Track is a loaded, validated definition with its built surface.
type Track struct {
	def         Definition
	geometry    *Geometry
	fingerprint uint64
}

// Load decodes and validates a track definition.
func Load(r io.Reader) (*Track, error) {
	def := defaultDefinition()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode track: %w", err)
	}
	return New(def)
}

func LoadFile(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open track: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Builtin returns the bundled Harbour Loop.
func Builtin() (*Track, error) {
	return Load(bytes.NewReader(harbourYAML))
}

// New validates def and builds its geometry.
func New(def Definition) (*Track, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	geo, err := BuildGeometry(def.Geometry)
	if err != nil {
		return nil, err
	}

	ground, err := geo.GroundAt(def.Spawn.X, def.Spawn.Z)
	if err != nil {
		return nil, err
	}
	if !ground.OnSurface {
		return nil, fmt.Errorf("%w: spawn (%.1f, %.1f) is off the road", ErrInvalidTrack, def.Spawn.X, def.Spawn.Z)
	}

	fp, err := Fingerprint(def)
	if err != nil {
		return nil, err
	}
	return &Track{def: def, geometry: geo, fingerprint: fp}, nil
}

func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTrack)
	}
	if !physics.V3(d.Spawn.X, d.Spawn.Y, d.Spawn.Z).IsFinite() || !physics.IsFinite(d.Spawn.YawDeg) {
		return fmt.Errorf("%w: spawn is not finite", ErrInvalidTrack)
	}
	if err := d.raceConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTrack, err)
	}
	if err := d.Vehicle.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTrack, err)
	}
	return nil
}

func (d Definition) raceConfig() race.Config {
	cfg := race.DefaultConfig(physics.V3(d.Spawn.X, d.Spawn.Y, d.Spawn.Z), d.Checkpoints)
	cfg.LapsTotal = d.Laps
	cfg.DetectionRadius = d.Rules.DetectionRadius
	cfg.SpawnExclusionRadius = d.Rules.SpawnExclusionRadius
	cfg.MinSpeedKmh = d.Rules.MinSpeedKmh
	cfg.Debounce = d.Rules.Debounce
	cfg.MinLapTime = d.Rules.MinLapTime
	return cfg
}

// Fingerprint hashes the canonical YAML encoding of def. Replays record it
// so a recording is never verified against a different track.
func Fingerprint(def Definition) (uint64, error) {
	data, err := yaml.Marshal(def)
	if err != nil {
		return 0, fmt.Errorf("encode track: %w", err)
	}
	return xxhash.Sum64(data), nil
}

func (t *Track) Name() string { return t.def.Name }

func (t *Track) Definition() Definition { return t.def }

func (t *Track) Surface() physics.Surface { return t.geometry }

func (t *Track) Geometry() *Geometry { return t.geometry }

func (t *Track) Fingerprint() uint64 { return t.fingerprint }

func (t *Track) RaceConfig() race.Config { return t.def.raceConfig() }

func (t *Track) VehicleParams() vehicle.Params { return t.def.Vehicle }

func (t *Track) SpawnPose() vehicle.Pose {
	return vehicle.Pose{
		Position: physics.V3(t.def.Spawn.X, t.def.Spawn.Y, t.def.Spawn.Z),
		Yaw:      vehicle.DegToRad(t.def.Spawn.YawDeg),
	}
}
