package simulation

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the environment variables that override the
// experiment configuration.
const EnvPrefix = "PROCSIM_"

// Experiment describes how a model is run.
type Experiment struct {
	// Name identifies the experiment in logs and recordings.
	Name string `yaml:"name"`

	// NumReplications is the number of independent runs.
	NumReplications int `yaml:"replications"`

	// LengthOfReplication is the simulated time at which each replication
	// ends. Zero runs until no event is left.
	LengthOfReplication float64 `yaml:"replication_length"`

	// LengthOfWarmUp is the simulated time at which statistics are reset.
	// Zero disables the warm-up.
	LengthOfWarmUp float64 `yaml:"warm_up_length"`

	// MaxWallClock limits the real time spent on each replication. Zero
	// means no limit.
	MaxWallClock time.Duration `yaml:"max_wall_clock"`

	// BaseSeed seeds every random stream of the model.
	BaseSeed int64 `yaml:"seed"`

	// AdvanceStreams moves every random stream to a fresh sub-stream before
	// each replication after the first one.
	AdvanceStreams bool `yaml:"advance_streams"`

	// Params holds model specific parameters.
	Params map[string]float64 `yaml:"params,omitempty"`
}

// DefaultExperiment returns an experiment with a single replication that runs
// until no event is left.
func DefaultExperiment() Experiment {
	return Experiment{
		Name:            "Experiment",
		NumReplications: 1,
		AdvanceStreams:  true,
		Params:          map[string]float64{},
	}
}

// Validate checks that the experiment can be run.
func (e Experiment) Validate() error {
	if e.NumReplications < 1 {
		return fmt.Errorf(
			"replications must be at least 1, got %d", e.NumReplications)
	}

	if e.LengthOfReplication < 0 {
		return fmt.Errorf(
			"replication_length must not be negative, got %v",
			e.LengthOfReplication)
	}

	if e.LengthOfWarmUp < 0 {
		return fmt.Errorf(
			"warm_up_length must not be negative, got %v", e.LengthOfWarmUp)
	}

	if e.LengthOfReplication > 0 && e.LengthOfWarmUp >= e.LengthOfReplication {
		return fmt.Errorf(
			"warm_up_length %v must be shorter than replication_length %v",
			e.LengthOfWarmUp, e.LengthOfReplication)
	}

	if e.MaxWallClock < 0 {
		return fmt.Errorf(
			"max_wall_clock must not be negative, got %v", e.MaxWallClock)
	}

	return nil
}

// Param returns a model parameter, or def if it is not set.
func (e Experiment) Param(name string, def float64) float64 {
	if v, ok := e.Params[name]; ok {
		return v
	}

	return def
}

// LoadExperiment reads an experiment from a YAML file. Unknown keys are
// rejected. Variables from a .env file in the working directory and from the
// environment override the file.
func LoadExperiment(path string) (Experiment, error) {
	exp := DefaultExperiment()

	data, err := os.ReadFile(path)
	if err != nil {
		return exp, fmt.Errorf("reading experiment config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&exp); err != nil {
		return exp, fmt.Errorf("parsing experiment config: %w", err)
	}

	if err := ApplyEnv(&exp); err != nil {
		return exp, err
	}

	if err := exp.Validate(); err != nil {
		return exp, fmt.Errorf("invalid experiment config %s: %w", path, err)
	}

	return exp, nil
}

// ApplyEnv overrides the experiment with PROCSIM_* environment variables. A
// .env file in the working directory is loaded first if it exists; it does not
// override variables that are already set.
func ApplyEnv(exp *Experiment) error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	if v, ok := os.LookupEnv(EnvPrefix + "NAME"); ok {
		exp.Name = v
	}

	if err := lookupInt(EnvPrefix+"REPLICATIONS", &exp.NumReplications); err != nil {
		return err
	}

	if err := lookupFloat(
		EnvPrefix+"REPLICATION_LENGTH", &exp.LengthOfReplication); err != nil {
		return err
	}

	if err := lookupFloat(
		EnvPrefix+"WARM_UP_LENGTH", &exp.LengthOfWarmUp); err != nil {
		return err
	}

	if v, ok := os.LookupEnv(EnvPrefix + "SEED"); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %sSEED: %w", EnvPrefix, err)
		}

		exp.BaseSeed = seed
	}

	if v, ok := os.LookupEnv(EnvPrefix + "MAX_WALL_CLOCK"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %sMAX_WALL_CLOCK: %w", EnvPrefix, err)
		}

		exp.MaxWallClock = d
	}

	return nil
}

func lookupInt(name string, dst *int) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}

	*dst = n

	return nil
}

func lookupFloat(name string, dst *float64) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}

	*dst = f

	return nil
}
