package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/swarm.forage/internal/arena"
	"github.com/banshee-data/swarm.forage/internal/arena/caches"
	"github.com/banshee-data/swarm.forage/internal/arena/governor"
	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/perception/density"
	"github.com/banshee-data/swarm.forage/internal/robot"
	"github.com/banshee-data/swarm.forage/internal/sim"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Rect is an inclusive cell rectangle.
type Rect struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

func (r Rect) entity() entity.Rect {
	return entity.Rect{
		Min: entity.Coord{X: r.MinX, Y: r.MinY},
		Max: entity.Coord{X: r.MaxX, Y: r.MaxY},
	}
}

// TuningConfig represents the root configuration for a foraging run.
// Every field is optional; the Get* accessors supply the defaults.
type TuningConfig struct {
	// Arena layout
	ArenaWidth  *int    `json:"arena_width,omitempty"`
	ArenaHeight *int    `json:"arena_height,omitempty"`
	Nest        *Rect   `json:"nest,omitempty"`
	Clusters    []Rect  `json:"clusters,omitempty"`
	Blocks      *int    `json:"blocks,omitempty"`
	CacheExtent *int    `json:"cache_extent,omitempty"`
	Seed        *uint64 `json:"seed,omitempty"`
	Timesteps   *uint64 `json:"timesteps,omitempty"`

	// Swarm
	Robots     *int    `json:"robots,omitempty"`
	Workers    *int    `json:"workers,omitempty"`
	LOSRadius  *int    `json:"los_radius,omitempty"`
	Perception *string `json:"perception,omitempty"` // "store", "map" or "oracle"

	// Object density
	DensityMax           *float64 `json:"density_max,omitempty"`
	DensityDecay         *string  `json:"density_decay,omitempty"` // "linear" or "exponential"
	DensityDecayRate     *float64 `json:"density_decay_rate,omitempty"`
	DensityRepeatDeposit *bool    `json:"density_repeat_deposit,omitempty"`
	DensityDepositUnit   *float64 `json:"density_deposit_unit,omitempty"`

	// Caches
	Caching                *string  `json:"caching,omitempty"` // "none", "static" or "dynamic"
	CacheMinBlocks         *int     `json:"cache_min_blocks,omitempty"`
	CacheMinDist           *float64 `json:"cache_min_dist,omitempty"`
	CacheStrictConstraints *bool    `json:"cache_strict_constraints,omitempty"`
	CacheRespawnScale      *float64 `json:"cache_respawn_scale,omitempty"`
	StaticCacheSize        *int     `json:"static_cache_size,omitempty"`

	// Block redistribution
	RedistributionTrigger    *string `json:"redistribution_trigger,omitempty"`
	RedistributionRecurrence *string `json:"redistribution_recurrence,omitempty"`
	RedistributionTimestep   *uint64 `json:"redistribution_timestep,omitempty"`
	RedistributionBlockCount *uint64 `json:"redistribution_block_count,omitempty"`

	// Task allocation
	HarvesterProb    *float64 `json:"harvester_prob,omitempty"`
	SwitchOnAbort    *float64 `json:"switch_on_abort,omitempty"`
	MaxTaskTimesteps *uint64  `json:"max_task_timesteps,omitempty"`
	NewCacheNestDist *float64 `json:"new_cache_nest_dist,omitempty"`

	// Convergence
	ConvergenceWindow    *int     `json:"convergence_window,omitempty"`
	ConvergenceTolerance *float64 `json:"convergence_tolerance,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a .json, .yaml or .yml file.
// The document is checked against the tuning schema before decoding.
// Fields omitted from the file fall back to the Get* defaults, so partial
// configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if ext != ".json" {
		if data, err = yamlToJSON(data); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}
	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates a JSON tuning document.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// yamlToJSON re-encodes a YAML mapping as JSON so both formats share the
// schema check and the json tags.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return json.Marshal(doc)
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/arena/caches/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks cross-field constraints and the enumerated strings. Range
// checks on individual fields live in the schema and are repeated here for
// configs built in code.
func (c *TuningConfig) Validate() error {
	if c.ArenaWidth != nil && *c.ArenaWidth <= 0 {
		return fmt.Errorf("arena_width must be positive, got %d", *c.ArenaWidth)
	}
	if c.ArenaHeight != nil && *c.ArenaHeight <= 0 {
		return fmt.Errorf("arena_height must be positive, got %d", *c.ArenaHeight)
	}
	if c.Robots != nil && *c.Robots <= 0 {
		return fmt.Errorf("robots must be positive, got %d", *c.Robots)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	for name, p := range map[string]*float64{
		"harvester_prob":  c.HarvesterProb,
		"switch_on_abort": c.SwitchOnAbort,
	} {
		if p != nil && (*p < 0 || *p > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *p)
		}
	}
	if c.Perception != nil {
		if _, err := robot.ParsePerceptionKind(*c.Perception); err != nil {
			return err
		}
	}
	if c.Caching != nil {
		if _, err := robot.ParseCacheMode(*c.Caching); err != nil {
			return err
		}
	}
	if c.DensityDecay != nil {
		if _, err := density.ParseDecayKind(*c.DensityDecay); err != nil {
			return err
		}
	}
	if c.RedistributionTrigger != nil {
		if _, err := governor.ParseTrigger(*c.RedistributionTrigger); err != nil {
			return err
		}
	}
	if c.RedistributionRecurrence != nil {
		if _, err := governor.ParseRecurrence(*c.RedistributionRecurrence); err != nil {
			return err
		}
	}
	if _, err := c.DensityParams(); err != nil {
		return err
	}
	return nil
}

func get[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func (c *TuningConfig) GetArenaWidth() int  { return get(c.ArenaWidth, 48) }
func (c *TuningConfig) GetArenaHeight() int { return get(c.ArenaHeight, 32) }
func (c *TuningConfig) GetBlocks() int      { return get(c.Blocks, 40) }
func (c *TuningConfig) GetCacheExtent() int { return get(c.CacheExtent, 0) }
func (c *TuningConfig) GetSeed() uint64     { return get(c.Seed, 1) }
func (c *TuningConfig) GetTimesteps() uint64 {
	return get(c.Timesteps, 2000)
}

// GetNest defaults to a four-cell-wide strip along the west wall.
func (c *TuningConfig) GetNest() Rect {
	return get(c.Nest, Rect{MaxX: 3, MaxY: c.GetArenaHeight() - 1})
}

// GetClusters defaults to one cluster near the east wall.
func (c *TuningConfig) GetClusters() []Rect {
	if len(c.Clusters) > 0 {
		return c.Clusters
	}
	w, h := c.GetArenaWidth(), c.GetArenaHeight()
	return []Rect{{MinX: w * 3 / 4, MinY: h / 4, MaxX: w - 2, MaxY: h * 3 / 4}}
}

func (c *TuningConfig) GetRobots() int        { return get(c.Robots, 16) }
func (c *TuningConfig) GetWorkers() int       { return get(c.Workers, 0) }
func (c *TuningConfig) GetLOSRadius() int     { return get(c.LOSRadius, 4) }
func (c *TuningConfig) GetPerception() string { return get(c.Perception, "store") }

func (c *TuningConfig) GetDensityMax() float64       { return get(c.DensityMax, 1.0) }
func (c *TuningConfig) GetDensityDecay() string      { return get(c.DensityDecay, "linear") }
func (c *TuningConfig) GetDensityDecayRate() float64 { return get(c.DensityDecayRate, 0.01) }
func (c *TuningConfig) GetDensityRepeatDeposit() bool {
	return get(c.DensityRepeatDeposit, false)
}
func (c *TuningConfig) GetDensityDepositUnit() float64 { return get(c.DensityDepositUnit, 1.0) }

func (c *TuningConfig) GetCaching() string              { return get(c.Caching, "none") }
func (c *TuningConfig) GetCacheMinBlocks() int          { return get(c.CacheMinBlocks, entity.MinCacheBlocks) }
func (c *TuningConfig) GetCacheMinDist() float64        { return get(c.CacheMinDist, 3.0) }
func (c *TuningConfig) GetCacheStrictConstraints() bool { return get(c.CacheStrictConstraints, true) }
func (c *TuningConfig) GetCacheRespawnScale() float64   { return get(c.CacheRespawnScale, 0.05) }
func (c *TuningConfig) GetStaticCacheSize() int         { return get(c.StaticCacheSize, 6) }

func (c *TuningConfig) GetRedistributionTrigger() string {
	return get(c.RedistributionTrigger, "none")
}
func (c *TuningConfig) GetRedistributionRecurrence() string {
	return get(c.RedistributionRecurrence, "single")
}
func (c *TuningConfig) GetRedistributionTimestep() uint64 {
	return get(c.RedistributionTimestep, 1000)
}
func (c *TuningConfig) GetRedistributionBlockCount() uint64 {
	return get(c.RedistributionBlockCount, 100)
}

func (c *TuningConfig) GetHarvesterProb() float64    { return get(c.HarvesterProb, 0.5) }
func (c *TuningConfig) GetSwitchOnAbort() float64    { return get(c.SwitchOnAbort, 0.3) }
func (c *TuningConfig) GetMaxTaskTimesteps() uint64  { return get(c.MaxTaskTimesteps, 500) }
func (c *TuningConfig) GetNewCacheNestDist() float64 { return get(c.NewCacheNestDist, 10.0) }

func (c *TuningConfig) GetConvergenceWindow() int { return get(c.ConvergenceWindow, 50) }
func (c *TuningConfig) GetConvergenceTolerance() float64 {
	return get(c.ConvergenceTolerance, 0.05)
}

// DensityParams returns the object density model.
func (c *TuningConfig) DensityParams() (density.Params, error) {
	decay, err := density.ParseDecayKind(c.GetDensityDecay())
	if err != nil {
		return density.Params{}, err
	}
	p := density.Params{
		Max:           c.GetDensityMax(),
		DecayRate:     c.GetDensityDecayRate(),
		Decay:         decay,
		RepeatDeposit: c.GetDensityRepeatDeposit(),
		DepositUnit:   c.GetDensityDepositUnit(),
	}
	if err := p.Validate(); err != nil {
		return density.Params{}, fmt.Errorf("density: %w", err)
	}
	return p, nil
}

// CacheParams returns the cache manager params for the configured caching mode.
func (c *TuningConfig) CacheParams() (caches.Params, error) {
	mode, err := robot.ParseCacheMode(c.GetCaching())
	if err != nil {
		return caches.Params{}, err
	}
	return caches.Params{
		Static:             mode == robot.CacheStatic,
		Dynamic:            mode == robot.CacheDynamic,
		MinBlocks:          c.GetCacheMinBlocks(),
		MinDist:            c.GetCacheMinDist(),
		StrictConstraints:  c.GetCacheStrictConstraints(),
		RespawnScaleFactor: c.GetCacheRespawnScale(),
		StaticSize:         c.GetStaticCacheSize(),
		Seed:               c.GetSeed(),
	}, nil
}

// GovernorParams returns the redistribution governor config.
func (c *TuningConfig) GovernorParams() governor.Config {
	return governor.Config{
		Trigger:    c.GetRedistributionTrigger(),
		Recurrence: c.GetRedistributionRecurrence(),
		Timestep:   c.GetRedistributionTimestep(),
		BlockCount: c.GetRedistributionBlockCount(),
	}
}

// ArenaParams returns the arena layout.
func (c *TuningConfig) ArenaParams() arena.Params {
	var clusters []entity.Rect
	for _, r := range c.GetClusters() {
		clusters = append(clusters, r.entity())
	}
	return arena.Params{
		XDim:        c.GetArenaWidth(),
		YDim:        c.GetArenaHeight(),
		Nest:        c.GetNest().entity(),
		Clusters:    clusters,
		NBlocks:     c.GetBlocks(),
		Seed:        c.GetSeed(),
		CacheExtent: c.GetCacheExtent(),
	}
}

// RobotParams returns the template robot. Its cache mode is filled in by
// the simulation from the cache params.
func (c *TuningConfig) RobotParams() (robot.Params, error) {
	kind, err := robot.ParsePerceptionKind(c.GetPerception())
	if err != nil {
		return robot.Params{}, err
	}
	dp, err := c.DensityParams()
	if err != nil {
		return robot.Params{}, err
	}
	return robot.Params{
		LOSRadius:        c.GetLOSRadius(),
		Perception:       kind,
		Density:          dp,
		MaxTaskTimesteps: c.GetMaxTaskTimesteps(),
		NewCacheNestDist: c.GetNewCacheNestDist(),
	}, nil
}

// SwarmParams assembles the full run params.
func (c *TuningConfig) SwarmParams() (sim.Params, error) {
	rp, err := c.RobotParams()
	if err != nil {
		return sim.Params{}, err
	}
	cp, err := c.CacheParams()
	if err != nil {
		return sim.Params{}, err
	}
	return sim.Params{
		Arena:                c.ArenaParams(),
		Caches:               cp,
		Governor:             c.GovernorParams(),
		Robot:                rp,
		Robots:               c.GetRobots(),
		Workers:              c.GetWorkers(),
		HarvesterProb:        c.GetHarvesterProb(),
		SwitchOnAbort:        c.GetSwitchOnAbort(),
		ConvergenceWindow:    c.GetConvergenceWindow(),
		ConvergenceTolerance: c.GetConvergenceTolerance(),
		Seed:                 c.GetSeed(),
	}, nil
}
