// Package config assembles runtime configuration from the environment and an optional weights file
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/abelzeko/kommunekamp/internal/entities"
	"github.com/abelzeko/kommunekamp/internal/scoring"
)

// Config holds everything the commands need to wire their components
type Config struct {
	HTTPAddr string

	DatavarehusURL    string
	DatavarehusToken  string
	KommDatasetID     int
	RainDatasetID     int
	RequestsPerSecond float64
	HTTPTimeout       time.Duration

	PostGISDSN string

	ReportURL            string
	ReportToken          string
	ReportTemplateID     string
	ReportFilenamePrefix string

	DemographicsURL          string
	DefaultPercentageUnder35 float64

	HistoryDB        string
	HistoryRetention time.Duration

	TelegramBotToken string
	OpenAIAPIKey     string

	Weights []entities.AttributeWeight
	Policy  scoring.Policy

	LogLevel zerolog.Level
}

// WeightsFile is the YAML layout of WEIGHTS_FILE
type WeightsFile struct {
	Weights []entities.AttributeWeight `yaml:"weights"`
	Policy  scoring.Policy             `yaml:"policy"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		HTTPAddr:                 ":8080",
		KommDatasetID:            7,
		RainDatasetID:            80,
		RequestsPerSecond:        5,
		HTTPTimeout:              30 * time.Second,
		ReportTemplateID:         "4ySbCCCqx",
		ReportFilenamePrefix:     "Norkart_Kommunekamp",
		DefaultPercentageUnder35: 30,
		HistoryRetention:         30 * 24 * time.Hour,
		Weights:                  entities.DefaultWeights(),
		Policy:                   scoring.DefaultPolicy(),
		LogLevel:                 zerolog.InfoLevel,
	}
}

// Load reads an optional .env file and then the process environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a config from an environment lookup function
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	env := envReader{lookup: lookup}

	cfg.HTTPAddr = env.str("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatavarehusURL = strings.TrimRight(env.str("DATAVAREHUS_URL", ""), "/")
	cfg.DatavarehusToken = env.str("DATAVAREHUS_TOKEN", "")
	cfg.KommDatasetID = env.integer("KOMM_DATASET_ID", cfg.KommDatasetID)
	cfg.RainDatasetID = env.integer("RAIN_DATASET_ID", cfg.RainDatasetID)
	cfg.RequestsPerSecond = env.number("REQUESTS_PER_SECOND", cfg.RequestsPerSecond)
	cfg.HTTPTimeout = env.duration("HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.PostGISDSN = env.str("POSTGIS_DSN", "")
	cfg.ReportURL = strings.TrimRight(env.str("RAPPORT_URL", ""), "/")
	cfg.ReportToken = env.str("TOKEN", "")
	cfg.ReportTemplateID = env.str("TEMPLATE_ID", cfg.ReportTemplateID)
	cfg.ReportFilenamePrefix = env.str("REPORT_FILENAME_PREFIX", cfg.ReportFilenamePrefix)
	cfg.DemographicsURL = env.str("DEMOGRAPHICS_URL", "")
	cfg.DefaultPercentageUnder35 = env.number("DEFAULT_PERCENTAGE_UNDER_35", cfg.DefaultPercentageUnder35)
	cfg.HistoryDB = env.str("HISTORY_DB", "")
	cfg.HistoryRetention = env.duration("HISTORY_RETENTION", cfg.HistoryRetention)
	cfg.TelegramBotToken = env.str("TELEGRAM_BOT_TOKEN", "")
	cfg.OpenAIAPIKey = env.str("OPENAI_API_KEY", "")

	if level := env.str("LOG_LEVEL", ""); level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			env.errs = append(env.errs, fmt.Errorf("LOG_LEVEL: %w", err))
		} else {
			cfg.LogLevel = parsed
		}
	}

	if path := env.str("WEIGHTS_FILE", ""); path != "" {
		wf, err := LoadWeightsFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Weights = wf.Weights
		if wf.Policy.LowerIsBetter != "" {
			cfg.Policy.LowerIsBetter = wf.Policy.LowerIsBetter
		}
		if wf.Policy.Absent != "" {
			cfg.Policy.Absent = wf.Policy.Absent
		}
	}

	// environment overrides the weights file
	if v, ok := lookup("LOWER_IS_BETTER_MODE"); ok && v != "" {
		cfg.Policy.LowerIsBetter = scoring.LowerIsBetterMode(v)
	}
	if v, ok := lookup("ABSENT_MODE"); ok && v != "" {
		cfg.Policy.Absent = scoring.AbsentMode(v)
	}
	if err := cfg.Policy.Validate(); err != nil {
		env.errs = append(env.errs, err)
	}

	if len(env.errs) > 0 {
		return Config{}, errors.Join(env.errs...)
	}
	return cfg, nil
}

// LoadWeightsFile reads and validates a YAML weights file
func LoadWeightsFile(path string) (*WeightsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading weights file: %w", err)
	}

	var wf WeightsFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parsing weights YAML: %w", err)
	}
	if err := entities.ValidateWeights(wf.Weights); err != nil {
		return nil, fmt.Errorf("invalid weights in %s: %w", path, err)
	}
	return &wf, nil
}

// RequireServe checks the settings the HTTP server cannot run without
func (c Config) RequireServe() error {
	return c.require(map[string]string{
		"DATAVAREHUS_URL": c.DatavarehusURL,
		"RAPPORT_URL":     c.ReportURL,
	})
}

// RequireCompare checks the settings needed to build and score entities
func (c Config) RequireCompare() error {
	return c.require(map[string]string{
		"DATAVAREHUS_URL": c.DatavarehusURL,
	})
}

// RequireBot checks the settings the Telegram bot cannot run without
func (c Config) RequireBot() error {
	return c.require(map[string]string{
		"DATAVAREHUS_URL":    c.DatavarehusURL,
		"RAPPORT_URL":        c.ReportURL,
		"TELEGRAM_BOT_TOKEN": c.TelegramBotToken,
	})
}

func (c Config) require(values map[string]string) error {
	var missing []string
	for name, value := range values {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (e *envReader) number(key string, def float64) float64 {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return f
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
