// Package config holds the gomachine CLI configuration and the YAML
// experiment files describing a training run.
//
// Application settings come from viper (config file, GOMACHINE_* environment
// variables, flags). Experiments are standalone YAML documents decoded with
// go.yaml.in/yaml/v3.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/gomachine/gomachine/learning/optim"
	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
)

const (
	// AppName はconfigファイル名と~/.config配下のディレクトリ名
	AppName = "gomachine"
	// EnvPrefix は環境変数の接頭辞 (GOMACHINE_LOG_LEVEL など)
	EnvPrefix = "GOMACHINE"
)

// Viper keys.
const (
	KeyLogLevel      = "log_level"
	KeyRegistryPath  = "registry.path"
	KeyOptimName     = "optim.name"
	KeyOptimAlpha    = "optim.alpha"
	KeyOptimIters    = "optim.iters"
	KeyOptimMomentum = "optim.momentum"
	KeyOptimTol      = "optim.tol"
	KeySeed          = "seed"
	KeyPlotDir       = "plot.dir"
)

// Config is the resolved application configuration.
type Config struct {
	LogLevel string         `mapstructure:"log_level" yaml:"log_level"`
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Optim    OptimConfig    `mapstructure:"optim" yaml:"optim"`
	Seed     uint64         `mapstructure:"seed" yaml:"seed"`
	Plot     PlotConfig     `mapstructure:"plot" yaml:"plot"`
}

// RegistryConfig locates the SQLite model registry.
type RegistryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PlotConfig は学習曲線などの出力先
type PlotConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyRegistryPath, defaultRegistryPath())
	v.SetDefault(KeyOptimName, "")
	v.SetDefault(KeyOptimAlpha, 0.0)
	v.SetDefault(KeyOptimIters, 0)
	v.SetDefault(KeyOptimMomentum, 0.0)
	v.SetDefault(KeyOptimTol, 0.0)
	v.SetDefault(KeySeed, 0)
	v.SetDefault(KeyPlotDir, ".")
}

func defaultRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName + ".db"
	}
	return filepath.Join(home, ".config", AppName, "models.db")
}

// Init prepares v the way the CLI does: explicit file when cfgFile is set,
// otherwise gomachine.yaml in the working directory or ~/.config/gomachine,
// plus GOMACHINE_* environment variables. A missing config file is not an
// error.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", AppName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "read config")
	}
	log.GetLoggerWithName("config").Debug("config loaded", "file", v.ConfigFileUsed())
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the log level, registry path and optimizer settings.
func (c *Config) Validate() error {
	if _, err := log.ToLogLevel(c.LogLevel); err != nil {
		return errors.NewValidationError(KeyLogLevel, "must be debug, info, warn or error", c.LogLevel)
	}
	if c.Registry.Path == "" {
		return errors.NewValidationError(KeyRegistryPath, "is required", c.Registry.Path)
	}
	return c.Optim.validate()
}

// Optimizer returns the configured optimizer, or nil when optim.name is
// empty and each model should fall back to its own default.
func (c *Config) Optimizer() (optim.Algorithm, error) {
	return c.Optim.Algorithm(c.Seed)
}

// OptimConfig selects and tunes an optimizer. Zero values mean "use the
// algorithm's default".
type OptimConfig struct {
	Name     string  `mapstructure:"name" yaml:"name"`
	Alpha    float64 `mapstructure:"alpha" yaml:"alpha,omitempty"`
	Iters    int     `mapstructure:"iters" yaml:"iters,omitempty"`
	Momentum float64 `mapstructure:"momentum" yaml:"momentum,omitempty"`
	Tol      float64 `mapstructure:"tol" yaml:"tol,omitempty"`
}

func (o OptimConfig) validate() error {
	switch strings.ToLower(o.Name) {
	case "", "gd", "sgd", "adagrad", "lbfgs":
	default:
		return errors.NewValidationError(KeyOptimName, "must be gd, sgd, adagrad or lbfgs", o.Name)
	}
	if o.Alpha < 0 {
		return errors.NewValidationError(KeyOptimAlpha, "must be non-negative", o.Alpha)
	}
	if o.Iters < 0 {
		return errors.NewValidationError(KeyOptimIters, "must be non-negative", o.Iters)
	}
	if o.Momentum < 0 {
		return errors.NewValidationError(KeyOptimMomentum, "must be non-negative", o.Momentum)
	}
	if o.Tol < 0 {
		return errors.NewValidationError(KeyOptimTol, "must be non-negative", o.Tol)
	}
	return nil
}

// Algorithm builds the optimizer named by o, starting from the algorithm's
// defaults and overriding every non-zero field. seed feeds the stochastic
// optimizers' shuffling.
func (o OptimConfig) Algorithm(seed uint64) (optim.Algorithm, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(o.Name) {
	case "":
		return nil, nil
	case "gd":
		gd := optim.DefaultGradientDesc()
		setIf(&gd.Alpha, o.Alpha)
		setIntIf(&gd.Iters, o.Iters)
		setIf(&gd.Tol, o.Tol)
		return gd, nil
	case "sgd":
		sgd := optim.DefaultStochasticGD()
		setIf(&sgd.Alpha, o.Alpha)
		setIntIf(&sgd.Iters, o.Iters)
		setIf(&sgd.Mu, o.Momentum)
		sgd.Seed = seed
		return sgd, nil
	case "adagrad":
		ada := optim.DefaultAdaGrad()
		setIf(&ada.Alpha, o.Alpha)
		setIntIf(&ada.Iters, o.Iters)
		ada.Seed = seed
		return ada, nil
	default: // lbfgs
		lb := optim.DefaultLBFGS()
		setIntIf(&lb.Iters, o.Iters)
		setIf(&lb.GradTol, o.Tol)
		return lb, nil
	}
}

// merge fills the zero fields of o from base.
func (o OptimConfig) merge(base OptimConfig) OptimConfig {
	if o.Name == "" {
		o.Name = base.Name
	}
	if o.Alpha == 0 {
		o.Alpha = base.Alpha
	}
	if o.Iters == 0 {
		o.Iters = base.Iters
	}
	if o.Momentum == 0 {
		o.Momentum = base.Momentum
	}
	if o.Tol == 0 {
		o.Tol = base.Tol
	}
	return o
}

func setIf(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setIntIf(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
