package docpipe

import (
	"encoding/json"
	"os"

	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/util"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Environment variables overriding the configuration file
const (
	EnvBackend      = "DOCPIPE_BACKEND"
	EnvMongoURI     = "DOCPIPE_MONGO_URI"
	EnvDatabase     = "DOCPIPE_DATABASE"
	EnvStoragePath  = "DOCPIPE_STORAGE_PATH"
	EnvLogLevel     = "DOCPIPE_LOG_LEVEL"
	EnvWorstScore   = "DOCPIPE_WORST_SCORE"
	EnvQuizScore    = "DOCPIPE_QUIZ_SCORE"
	EnvSeedStudents = "DOCPIPE_SEED_STUDENTS"
)

// Config configures a run
type Config struct {
	// Backend is the name of a registered backend
	Backend string `json:"backend" validate:"required"`
	// Params are passed to the backend's opener
	Params   map[string]any `json:"params"`
	LogLevel string         `json:"log_level" validate:"omitempty,oneof=error warn warning info debug"`
	Scenario ScenarioConfig `json:"scenario"`
}

// ScenarioConfig parameterizes the fixed scenario
type ScenarioConfig struct {
	// WorstScore is the homework score below which a score counts as one of the worst
	WorstScore float64 `json:"worst_score" validate:"gte=0,lte=100"`
	// QuizScore is the quiz score at or above which a student is marked
	QuizScore float64 `json:"quiz_score" validate:"gte=0,lte=100"`
	// SeedStudents seeds the students collection before the run
	SeedStudents bool `json:"seed_students"`
}

// DefaultConfig returns a configuration for the in-memory embedded backend
func DefaultConfig() *Config {
	return &Config{
		Backend:  "badger",
		Params:   map[string]any{},
		LogLevel: "info",
		Scenario: ScenarioConfig{
			WorstScore: 30,
			QuizScore:  80,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	return util.ValidateStruct(c)
}

// LoadConfig loads the configuration. It starts from DefaultConfig, applies the yaml or json file
// at path (when path is not empty), loads the .env file at envPath when it exists and finally
// applies environment variable overrides.
func LoadConfig(path string, envPath string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		bits, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.Validation, "failed to read config file %s", path)
		}
		bits, err = util.YAMLToJSON(bits)
		if err != nil {
			return nil, errors.Wrap(err, errors.Validation, "failed to decode config file %s", path)
		}
		if err := json.Unmarshal(bits, cfg); err != nil {
			return nil, errors.Wrap(err, errors.Validation, "failed to decode config file %s", path)
		}
		if cfg.Params == nil {
			cfg.Params = map[string]any{}
		}
	}
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, errors.Wrap(err, errors.Validation, "failed to load %s", envPath)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	for env, param := range map[string]string{
		EnvMongoURI:    "uri",
		EnvDatabase:    "database",
		EnvStoragePath: "storage_path",
	} {
		if v := os.Getenv(env); v != "" {
			c.Params[param] = v
		}
	}
	if v := os.Getenv(EnvWorstScore); v != "" {
		score, err := cast.ToFloat64E(v)
		if err != nil {
			return errors.Validationf("scenario.worst_score", "%s must be a number", EnvWorstScore)
		}
		c.Scenario.WorstScore = score
	}
	if v := os.Getenv(EnvQuizScore); v != "" {
		score, err := cast.ToFloat64E(v)
		if err != nil {
			return errors.Validationf("scenario.quiz_score", "%s must be a number", EnvQuizScore)
		}
		c.Scenario.QuizScore = score
	}
	if v := os.Getenv(EnvSeedStudents); v != "" {
		seed, err := cast.ToBoolE(v)
		if err != nil {
			return errors.Validationf("scenario.seed_students", "%s must be a boolean", EnvSeedStudents)
		}
		c.Scenario.SeedStudents = seed
	}
	return nil
}
