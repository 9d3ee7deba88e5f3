package model

import (
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

// Duration is a Go duration literal vetted by the config schema, so parsing
// after LoadConfig cannot fail.
type Duration string

func (d Duration) Std() time.Duration {
	v, err := time.ParseDuration(string(d))
	if err != nil {
		return 0
	}
	return v
}

type Config struct {
	Version int     `json:"version" yaml:"version"` // fixed 0 for now
	Service Service `json:"service" yaml:"service"`
	Limits  Limits  `json:"limits" yaml:"limits"`
	Reaper  Reaper  `json:"reaper" yaml:"reaper"`
	Probe   Probe   `json:"probe" yaml:"probe"`
}

// Service holds the HTTP listener settings.
type Service struct {
	Listen  string `json:"listen" yaml:"listen"`
	Verbose bool   `json:"verbose" yaml:"verbose"`
}

// Limits bounds session, job and rate-limit bookkeeping.
type Limits struct {
	MaxTargets int      `json:"max_targets" yaml:"max_targets"`
	SessionTTL Duration `json:"session_ttl" yaml:"session_ttl"`
	JobTTL     Duration `json:"job_ttl" yaml:"job_ttl"`
	RateQuota  int      `json:"rate_quota" yaml:"rate_quota"`
	RateWindow Duration `json:"rate_window" yaml:"rate_window"`
}

// Reaper schedule: a 5-field cron expression or a plain period.
// Cron takes precedence when both are set.
type Reaper struct {
	Cron  string   `json:"cron,omitempty" yaml:"cron,omitempty"`
	Every Duration `json:"every" yaml:"every"`
}

// Probe tunes the simulated prober.
type Probe struct {
	MinDelay     Duration `json:"min_delay" yaml:"min_delay"`
	MaxDelay     Duration `json:"max_delay" yaml:"max_delay"`
	SuccessRatio float64  `json:"success_ratio" yaml:"success_ratio"`
	TunnelRatio  float64  `json:"tunnel_ratio" yaml:"tunnel_ratio"`
}

// DefaultConfig mirrors the schema defaults.
func DefaultConfig() Config {
	return Config{
		Version: 0,
		Service: Service{
			Listen:  ":5000",
			Verbose: false,
		},
		Limits: Limits{
			MaxTargets: 1000,
			SessionTTL: "24h",
			JobTTL:     "1h",
			RateQuota:  100,
			RateWindow: "1h",
		},
		Reaper: Reaper{
			Every: "5m",
		},
		Probe: Probe{
			MinDelay:     "500ms",
			MaxDelay:     "1500ms",
			SuccessRatio: 0.4,
			TunnelRatio:  0.25,
		},
	}
}

// LoadConfig validates YAML from r against the CUE schema and decodes it.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}
