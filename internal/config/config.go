package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"genesift/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig
	Database DatabaseConfig
	Output   OutputConfig
	LogLevel string
}

// AnalysisConfig holds every knob that changes numerical results
type AnalysisConfig struct {
	Seed            int64
	TrainFraction   float64
	Stratify        bool
	Folds           int
	AUCGrid         int
	NLambda         int
	LambdaRatio     float64
	PCRMaxRank      int
	FDRAlpha        float64
	LocFDRThreshold float64
	LocFDRNull      string
	Workers         int
	StatusColumn    string
}

// DatabaseConfig holds the optional report database
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether a database URL was configured
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// OutputConfig holds report file destinations
type OutputConfig struct {
	XLSXPath string
}

// Default returns the configuration used when no environment is set
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Seed:            42,
			TrainFraction:   0.7,
			Folds:           10,
			AUCGrid:         500,
			NLambda:         100,
			PCRMaxRank:      100,
			FDRAlpha:        0.05,
			LocFDRThreshold: 0.2,
			LocFDRNull:      "estimated",
			Workers:         runtime.GOMAXPROCS(0),
			StatusColumn:    "status",
		},
		LogLevel: "INFO",
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := Default()
	config.Analysis = loadAnalysisConfig(config.Analysis)
	config.Database = DatabaseConfig{URL: getEnvOrDefault("DATABASE_URL", "")}
	config.Output = OutputConfig{XLSXPath: getEnvOrDefault("GENESIFT_REPORT_XLSX", "")}
	config.LogLevel = getEnvOrDefault("LOG_LEVEL", config.LogLevel)

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadAnalysisConfig(d AnalysisConfig) AnalysisConfig {
	return AnalysisConfig{
		Seed:            getEnvInt64OrDefault("GENESIFT_SEED", d.Seed),
		TrainFraction:   getEnvFloatOrDefault("GENESIFT_TRAIN_FRACTION", d.TrainFraction),
		Stratify:        getEnvBoolOrDefault("GENESIFT_STRATIFY", d.Stratify),
		Folds:           getEnvIntOrDefault("GENESIFT_FOLDS", d.Folds),
		AUCGrid:         getEnvIntOrDefault("GENESIFT_AUC_GRID", d.AUCGrid),
		NLambda:         getEnvIntOrDefault("GENESIFT_NLAMBDA", d.NLambda),
		LambdaRatio:     getEnvFloatOrDefault("GENESIFT_LAMBDA_RATIO", d.LambdaRatio),
		PCRMaxRank:      getEnvIntOrDefault("GENESIFT_PCR_MAX_RANK", d.PCRMaxRank),
		FDRAlpha:        getEnvFloatOrDefault("GENESIFT_FDR_ALPHA", d.FDRAlpha),
		LocFDRThreshold: getEnvFloatOrDefault("GENESIFT_LOCFDR_THRESHOLD", d.LocFDRThreshold),
		LocFDRNull:      getEnvOrDefault("GENESIFT_LOCFDR_NULL", d.LocFDRNull),
		Workers:         getEnvIntOrDefault("GENESIFT_WORKERS", d.Workers),
		StatusColumn:    getEnvOrDefault("GENESIFT_STATUS_COLUMN", d.StatusColumn),
	}
}

// Validate checks ranges of the analysis settings
func (c *Config) Validate() error {
	a := c.Analysis
	switch {
	case a.TrainFraction <= 0 || a.TrainFraction >= 1:
		return errors.ConfigInvalid(fmt.Sprintf("train fraction %g must lie in (0,1)", a.TrainFraction))
	case a.Folds < 2:
		return errors.ConfigInvalid(fmt.Sprintf("folds %d must be at least 2", a.Folds))
	case a.AUCGrid < 2:
		return errors.ConfigInvalid(fmt.Sprintf("AUC grid %d must be at least 2", a.AUCGrid))
	case a.NLambda < 1:
		return errors.ConfigInvalid("nlambda must be positive")
	case a.LambdaRatio < 0 || a.LambdaRatio >= 1:
		return errors.ConfigInvalid(fmt.Sprintf("lambda ratio %g must lie in [0,1)", a.LambdaRatio))
	case a.PCRMaxRank < 1:
		return errors.ConfigInvalid("PCR max rank must be positive")
	case a.FDRAlpha <= 0 || a.FDRAlpha >= 1:
		return errors.ConfigInvalid(fmt.Sprintf("FDR alpha %g must lie in (0,1)", a.FDRAlpha))
	case a.LocFDRThreshold <= 0 || a.LocFDRThreshold > 1:
		return errors.ConfigInvalid(fmt.Sprintf("local fdr threshold %g must lie in (0,1]", a.LocFDRThreshold))
	case a.LocFDRNull != "estimated" && a.LocFDRNull != "theoretical":
		return errors.ConfigInvalid(fmt.Sprintf("local fdr null %q must be estimated or theoretical", a.LocFDRNull))
	case a.Workers < 1:
		return errors.ConfigInvalid("workers must be positive")
	case a.StatusColumn == "":
		return errors.ConfigInvalid("status column is required")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
