package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log     Logger   `mapstructure:"logger"`
	DB      Database `mapstructure:"database"`
	API     API      `mapstructure:"api"`
	Dataset Dataset  `mapstructure:"dataset"`
	Folds   Folds    `mapstructure:"folds"`
	Model   Model    `mapstructure:"model"`
	Trading Trading  `mapstructure:"trading"`
	Output  Output   `mapstructure:"output"`
	Cache   Cache    `mapstructure:"cache"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

// Enabled reports whether an artifact store is configured. The pipeline
// runs fully without one; results are then written to CSV only.
func (d Database) Enabled() bool {
	return d.Host != ""
}

type API struct {
	Port int `mapstructure:"port"`
}

// Dataset describes the input table: where to read it from and which
// columns the trainer consumes.
type Dataset struct {
	Source          string        `mapstructure:"source" validate:"required"`
	TimestampLayout string        `mapstructure:"timestamp_layout"`
	HorizonMinutes  int           `mapstructure:"horizon_minutes" validate:"gt=0"`
	Features        []string      `mapstructure:"features" validate:"min=1"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
}

// Folds configures calendar-based walk-forward splitting.
type Folds struct {
	TrainMonths  int `mapstructure:"train_months" validate:"gt=0"`
	TestMonths   int `mapstructure:"test_months" validate:"gt=0"`
	StepMonths   int `mapstructure:"step_months" validate:"gt=0"`
	MinTrainRows int `mapstructure:"min_train_rows"`
	MinTestRows  int `mapstructure:"min_test_rows"`
	MaxParallel  int `mapstructure:"max_parallel"`
}

// Model configures the per-fold gradient boosted classifier.
type Model struct {
	Rounds              int     `mapstructure:"rounds" validate:"gt=0"`
	LearningRate        float64 `mapstructure:"learning_rate" validate:"gt=0"`
	MaxDepth            int     `mapstructure:"max_depth" validate:"gt=0"`
	MinChildWeight      float64 `mapstructure:"min_child_weight"`
	Lambda              float64 `mapstructure:"lambda"`
	EarlyStoppingRounds int     `mapstructure:"early_stopping_rounds"`
}

// Trading configures the threshold sweep and the outcome pricing model.
// TakeProfitFrac and StopLossFrac are fractions of the entry price; zero
// disables the respective cap.
type Trading struct {
	ThresholdStart  float64 `mapstructure:"threshold_start" validate:"gt=0,lt=1"`
	ThresholdEnd    float64 `mapstructure:"threshold_end" validate:"gt=0,lt=1"`
	ThresholdStep   float64 `mapstructure:"threshold_step" validate:"gt=0"`
	TakeProfitFrac  float64 `mapstructure:"take_profit_frac"`
	StopLossFrac    float64 `mapstructure:"stop_loss_frac"`
	SlippageFrac    float64 `mapstructure:"slippage_frac"`
	Commission      float64 `mapstructure:"commission"`
	LotSize         float64 `mapstructure:"lot_size" validate:"gt=0"`
	PricerMode      string  `mapstructure:"pricer_mode" validate:"oneof=terminal path"`
	CalibrationBins int     `mapstructure:"calibration_bins"`
}

type Output struct {
	Dir string `mapstructure:"dir"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

func Load() (*Config, error) {
	// Best effort: local development keeps secrets in .env.
	_ = godotenv.Load()

	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "console")

	viper.SetDefault("dataset.timestamp_layout", "2006-01-02 15:04:05")
	viper.SetDefault("dataset.horizon_minutes", 15)
	viper.SetDefault("dataset.fetch_timeout", 30*time.Second)

	viper.SetDefault("folds.train_months", 12)
	viper.SetDefault("folds.test_months", 1)
	viper.SetDefault("folds.step_months", 1)
	viper.SetDefault("folds.min_train_rows", 50)
	viper.SetDefault("folds.min_test_rows", 10)
	viper.SetDefault("folds.max_parallel", 1)

	viper.SetDefault("model.rounds", 200)
	viper.SetDefault("model.learning_rate", 0.1)
	viper.SetDefault("model.max_depth", 4)
	viper.SetDefault("model.min_child_weight", 1.0)
	viper.SetDefault("model.lambda", 1.0)
	viper.SetDefault("model.early_stopping_rounds", 20)

	viper.SetDefault("trading.threshold_start", 0.50)
	viper.SetDefault("trading.threshold_end", 0.90)
	viper.SetDefault("trading.threshold_step", 0.05)
	viper.SetDefault("trading.slippage_frac", 0.0005)
	viper.SetDefault("trading.commission", 20.0)
	viper.SetDefault("trading.lot_size", 50.0)
	viper.SetDefault("trading.pricer_mode", "terminal")
	viper.SetDefault("trading.calibration_bins", 10)

	viper.SetDefault("output.dir", "output")

	viper.SetDefault("cache.default_expiration", 10*time.Minute)
	viper.SetDefault("cache.cleanup_interval", 15*time.Minute)
}
