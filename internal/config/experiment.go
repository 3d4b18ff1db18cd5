package config

import (
	"bytes"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/gomachine/gomachine/learning/kmeans"
	"github.com/gomachine/gomachine/learning/nnet"
	"github.com/gomachine/gomachine/learning/optim"
	"github.com/gomachine/gomachine/learning/toolkit"
	"github.com/gomachine/gomachine/pkg/errors"
)

// Model kinds understood by experiments and the CLI.
const (
	KindLinReg   = "linreg"
	KindLogistic = "logistic"
	KindKMeans   = "kmeans"
	KindNNet     = "nnet"
	KindGP       = "gp"
)

// Experiment はYAMLで記述された1回の学習実行です。
//
//	name: housing
//	model:
//	  kind: linreg
//	data:
//	  path: housing.csv
//	  target: price
//	  test_fraction: 0.2
//	scaler: standard
//	optimizer:
//	  name: gd
//	  alpha: 0.05
//	  iters: 500
//	regularization:
//	  kind: l2
//	  l2: 0.1
//	seed: 42
type Experiment struct {
	Name           string             `yaml:"name"`
	Model          ModelSpec          `yaml:"model"`
	Data           DataSpec           `yaml:"data"`
	Scaler         string             `yaml:"scaler,omitempty"`
	Optimizer      OptimConfig        `yaml:"optimizer,omitempty"`
	Regularization RegularizationSpec `yaml:"regularization,omitempty"`
	Seed           uint64             `yaml:"seed,omitempty"`
	Save           string             `yaml:"save,omitempty"`
	Plot           string             `yaml:"plot,omitempty"`
}

// ModelSpec holds the model kind and the hyperparameters specific to it.
type ModelSpec struct {
	Kind string `yaml:"kind"`

	// logistic
	Threshold float64 `yaml:"threshold,omitempty"`

	// kmeans
	K    int    `yaml:"k,omitempty"`
	Init string `yaml:"init,omitempty"`

	// nnet
	Layers     []int  `yaml:"layers,omitempty"`
	Activation string `yaml:"activation,omitempty"`
	Cost       string `yaml:"cost,omitempty"`

	// gp
	Kernel KernelSpec `yaml:"kernel,omitempty"`
	Noise  float64    `yaml:"noise,omitempty"`
}

// KernelSpec names a kernel and its parameters.
type KernelSpec struct {
	Name        string  `yaml:"name,omitempty"`
	LengthScale float64 `yaml:"length_scale,omitempty"`
	Amplitude   float64 `yaml:"amplitude,omitempty"`
	Alpha       float64 `yaml:"alpha,omitempty"`
	C           float64 `yaml:"c,omitempty"`
	Degree      float64 `yaml:"degree,omitempty"`
}

// DataSpec describes the training CSV.
type DataSpec struct {
	Path         string  `yaml:"path"`
	Target       string  `yaml:"target,omitempty"`
	NoHeader     bool    `yaml:"no_header,omitempty"`
	TestFraction float64 `yaml:"test_fraction,omitempty"`
}

// RegularizationSpec はtoolkit.NewRegularizationへの入力
type RegularizationSpec struct {
	Kind string  `yaml:"kind,omitempty"`
	L1   float64 `yaml:"l1,omitempty"`
	L2   float64 `yaml:"l2,omitempty"`
}

// LoadExperiment reads and validates the experiment file at path.
func LoadExperiment(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read experiment %s", path)
	}
	exp, err := ParseExperiment(data)
	if err != nil {
		return nil, errors.Wrapf(err, "experiment %s", path)
	}
	return exp, nil
}

// ParseExperiment decodes and validates an experiment document. Unknown
// keys are rejected.
func ParseExperiment(data []byte) (*Experiment, error) {
	var exp Experiment
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&exp); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.NewValueError("ParseExperiment", "empty experiment document")
		}
		return nil, errors.Wrap(err, "decode experiment")
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}

// Marshal encodes the experiment back to YAML.
func (e *Experiment) Marshal() ([]byte, error) {
	return yaml.Marshal(e)
}

// Supervised reports whether the model kind needs a target column.
func (e *Experiment) Supervised() bool {
	return e.Model.Kind != KindKMeans
}

// Validate checks that the experiment names a known model with sensible
// hyperparameters.
func (e *Experiment) Validate() error {
	e.Model.Kind = strings.ToLower(e.Model.Kind)
	switch e.Model.Kind {
	case KindLinReg, KindLogistic, KindGP:
	case KindKMeans:
		if e.Model.K <= 0 {
			return errors.NewValidationError("model.k", "must be positive", e.Model.K)
		}
		if _, err := kmeans.ParseInit(e.Model.Init); err != nil {
			return err
		}
	case KindNNet:
		if len(e.Model.Layers) < 2 {
			return errors.NewValidationError("model.layers", "needs at least input and output sizes", e.Model.Layers)
		}
		if _, err := e.Criterion(); err != nil {
			return err
		}
	case "":
		return errors.NewValidationError("model.kind", "is required", e.Model.Kind)
	default:
		return errors.NewValidationError("model.kind", "unknown model kind", e.Model.Kind)
	}

	if e.Model.Kind == KindLogistic && e.Model.Threshold != 0 &&
		!(e.Model.Threshold > 0 && e.Model.Threshold < 1) {
		return errors.NewValidationError("model.threshold", "must be in (0, 1)", e.Model.Threshold)
	}
	if e.Model.Noise < 0 {
		return errors.NewValidationError("model.noise", "must be non-negative", e.Model.Noise)
	}
	if e.Data.Path == "" {
		return errors.NewValidationError("data.path", "is required", e.Data.Path)
	}
	if e.Data.TestFraction < 0 || e.Data.TestFraction >= 1 {
		return errors.NewValidationError("data.test_fraction", "must be in [0, 1)", e.Data.TestFraction)
	}
	switch e.Scaler {
	case "", "none", "standard", "minmax":
	default:
		return errors.NewValidationError("scaler", "must be none, standard or minmax", e.Scaler)
	}
	if err := e.Optimizer.validate(); err != nil {
		return err
	}
	if _, err := e.Regularizer(); err != nil {
		return err
	}
	if e.Model.Kind == KindGP {
		if _, err := e.Kernel(); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDefaults fills optimizer settings and the seed from the application
// config where the experiment leaves them unset.
func (e *Experiment) ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	e.Optimizer = e.Optimizer.merge(cfg.Optim)
	if e.Seed == 0 {
		e.Seed = cfg.Seed
	}
}

// BuildOptimizer returns the experiment's optimizer, or nil for the model
// default.
func (e *Experiment) BuildOptimizer() (optim.Algorithm, error) {
	return e.Optimizer.Algorithm(e.Seed)
}

// Regularizer builds the configured regularization (None when unset).
func (e *Experiment) Regularizer() (toolkit.Regularization, error) {
	return toolkit.NewRegularization(strings.ToLower(e.Regularization.Kind), e.Regularization.L1, e.Regularization.L2)
}

// Criterion builds the network criterion. Without activation or cost the
// binary cross entropy criterion is used.
func (e *Experiment) Criterion() (nnet.Criterion, error) {
	if e.Model.Activation == "" && e.Model.Cost == "" {
		return nnet.BCECriterion(), nil
	}
	return nnet.NewCriterion(e.Model.Activation, e.Model.Cost)
}

// Kernel builds the GP kernel. Zero parameters take the kernel's usual
// defaults (length scale 1, amplitude 1, degree 2).
func (e *Experiment) Kernel() (toolkit.Kernel, error) {
	ks := e.Model.Kernel
	ls := orDefault(ks.LengthScale, 1)
	ampl := orDefault(ks.Amplitude, 1)
	switch strings.ToLower(ks.Name) {
	case "", "squared_exp", "rbf":
		return toolkit.SquaredExp{Ls: ls, Ampl: ampl}, nil
	case "exponential":
		return toolkit.Exponential{Ls: ls, Ampl: ampl}, nil
	case "linear":
		return toolkit.LinearKernel{C: ks.C}, nil
	case "polynomial":
		return toolkit.Polynomial{Alpha: orDefault(ks.Alpha, 1), C: ks.C, D: orDefault(ks.Degree, 2)}, nil
	case "rational_quadratic":
		return toolkit.RationalQuadratic{Alpha: orDefault(ks.Alpha, 1), Ls: ls}, nil
	case "multiquadric":
		return toolkit.Multiquadric{C: ks.C}, nil
	case "hypertan":
		return toolkit.HyperTan{Alpha: orDefault(ks.Alpha, 1), C: ks.C}, nil
	default:
		return nil, errors.NewValidationError("model.kernel.name", "unknown kernel", ks.Name)
	}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
