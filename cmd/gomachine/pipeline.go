package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/dataset"
	"github.com/gomachine/gomachine/internal/config"
	"github.com/gomachine/gomachine/internal/plotting"
	"github.com/gomachine/gomachine/internal/registry"
	"github.com/gomachine/gomachine/learning/gp"
	"github.com/gomachine/gomachine/learning/kmeans"
	"github.com/gomachine/gomachine/learning/linreg"
	"github.com/gomachine/gomachine/learning/logistic"
	"github.com/gomachine/gomachine/learning/nnet"
	"github.com/gomachine/gomachine/linalg"
	"github.com/gomachine/gomachine/metrics"
	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
)

// Metadata keys written next to the model weights.
const (
	scalerKey     = "scaler"
	targetKey     = "target"
	experimentKey = "experiment"
)

// runner adapts each model kind to one fit/predict shape.
type runner struct {
	kind    string
	predict func(X mat.Matrix) (mat.Matrix, error)
	fit     func(ctx context.Context, X, y mat.Matrix) error
	costs   func() []float64
	// exporter is nil for models that cannot be persisted.
	exporter model.WeightExporter

	// kmeans only
	clusterer *kmeans.KMeans
	// logistic only
	classifier *logistic.LogisticRegressor
	// nnet only
	net *nnet.NeuralNet
}

func newRunner(exp *config.Experiment) (*runner, error) {
	alg, err := exp.BuildOptimizer()
	if err != nil {
		return nil, err
	}
	reg, err := exp.Regularizer()
	if err != nil {
		return nil, err
	}

	r := &runner{kind: exp.Model.Kind}
	switch exp.Model.Kind {
	case config.KindLinReg:
		opts := []linreg.Option{linreg.WithRegularization(reg)}
		if alg != nil {
			opts = append(opts, linreg.WithOptimizer(alg))
		}
		m := linreg.NewLinRegressor(opts...)
		r.predict, r.fit, r.costs, r.exporter = m.Predict, m.FitContext, m.Costs, m

	case config.KindLogistic:
		opts := []logistic.Option{logistic.WithRegularization(reg)}
		if alg != nil {
			opts = append(opts, logistic.WithOptimizer(alg))
		}
		if exp.Model.Threshold != 0 {
			opts = append(opts, logistic.WithThreshold(exp.Model.Threshold))
		}
		m := logistic.NewLogisticRegressor(opts...)
		r.predict, r.fit, r.costs, r.exporter = m.Predict, m.FitContext, m.Costs, m
		r.classifier = m

	case config.KindKMeans:
		ia, err := kmeans.ParseInit(exp.Model.Init)
		if err != nil {
			return nil, err
		}
		m := kmeans.NewKMeans(kmeans.WithK(exp.Model.K), kmeans.WithInit(ia), kmeans.WithSeed(exp.Seed))
		r.predict, r.exporter = m.Predict, m
		r.fit = func(ctx context.Context, X, _ mat.Matrix) error { return m.FitContext(ctx, X) }
		r.costs = func() []float64 { return nil }
		r.clusterer = m

	case config.KindNNet:
		crit, err := exp.Criterion()
		if err != nil {
			return nil, err
		}
		opts := []nnet.Option{nnet.WithSeed(exp.Seed)}
		if alg != nil {
			opts = append(opts, nnet.WithOptimizer(alg))
		}
		m, err := nnet.New(exp.Model.Layers, crit.WithRegularization(reg), opts...)
		if err != nil {
			return nil, err
		}
		r.predict, r.fit, r.costs, r.exporter = m.Predict, m.FitContext, m.Costs, m
		r.net = m

	case config.KindGP:
		kernel, err := exp.Kernel()
		if err != nil {
			return nil, err
		}
		opts := []gp.Option{gp.WithKernel(kernel)}
		if exp.Model.Noise > 0 {
			opts = append(opts, gp.WithNoise(exp.Model.Noise))
		}
		m := gp.NewGaussianProcess(opts...)
		r.predict = m.Predict
		r.fit = func(_ context.Context, X, y mat.Matrix) error { return m.Fit(X, y) }
		r.costs = func() []float64 { return nil }

	default:
		return nil, errors.NewValidationError("model.kind", "unknown model kind", exp.Model.Kind)
	}
	return r, nil
}

// metric is one named evaluation result, printed in order.
type metric struct {
	Name  string
	Value float64
}

// trainReport summarises a training run.
type trainReport struct {
	Kind      string
	Samples   int
	Features  int
	TestRows  int
	Metrics   []metric
	Costs     []float64
	SavedAs   string
	PlotPath  string
	Duration  time.Duration
	Weights   *model.ModelWeights
	Evaluated string // "test" or "train"
}

// trainOptions carries the CLI-level settings that are not part of the
// experiment itself.
type trainOptions struct {
	plotDir string
	store   *registry.Store
}

// train runs an experiment end to end: load, split, scale, fit, evaluate,
// and optionally save to the registry and plot.
func train(ctx context.Context, exp *config.Experiment, opts trainOptions) (*trainReport, error) {
	logger := log.GetLoggerWithName("cli").With(log.ModelNameKey, exp.Model.Kind)
	began := time.Now()

	if exp.Save != "" && exp.Model.Kind == config.KindGP {
		return nil, errors.NewValueError("train", "gaussian process models cannot be saved to the registry")
	}

	ds, err := loadData(dataRequest{
		path:     exp.Data.Path,
		target:   exp.Data.Target,
		noHeader: exp.Data.NoHeader,
		noTarget: !exp.Supervised(),
	})
	if err != nil {
		return nil, err
	}
	if exp.Supervised() && ds.Y == nil {
		return nil, errors.NewValueError("train", "a target column is required for "+exp.Model.Kind)
	}

	XTrain, YTrain := ds.X, ds.Y
	var XTest, YTest *mat.Dense
	if exp.Data.TestFraction > 0 {
		split, err := dataset.TrainTestSplit(ds.X, optionalTarget(ds.Y), exp.Data.TestFraction, exp.Seed)
		if err != nil {
			return nil, err
		}
		XTrain, XTest, YTrain, YTest = split.XTrain, split.XTest, split.YTrain, split.YTest
	}

	var sc scaler
	if sc = newScaler(exp.Scaler); sc != nil {
		scaled, err := sc.FitTransform(XTrain)
		if err != nil {
			return nil, err
		}
		XTrain = linalg.AsDense(scaled)
		if XTest != nil {
			scaled, err := sc.Transform(XTest)
			if err != nil {
				return nil, err
			}
			XTest = linalg.AsDense(scaled)
		}
	}

	run, err := newRunner(exp)
	if err != nil {
		return nil, err
	}
	n, d := XTrain.Dims()
	logger.Info("training", log.SamplesKey, n, log.FeaturesKey, d)
	if err := run.fit(ctx, XTrain, optionalTarget(YTrain)); err != nil {
		return nil, err
	}

	rep := &trainReport{Kind: exp.Model.Kind, Samples: n, Features: d, Costs: run.costs(), Evaluated: "train"}
	evalX, evalY := XTrain, YTrain
	if XTest != nil {
		evalX, evalY = XTest, YTest
		rep.TestRows, _ = XTest.Dims()
		rep.Evaluated = "test"
	}
	if rep.Metrics, err = evaluate(exp, run, evalX, evalY); err != nil {
		return nil, err
	}

	if run.exporter != nil {
		w, err := run.exporter.ExportWeights()
		if err != nil {
			return nil, err
		}
		w.Features = ds.Features
		if w.Metadata == nil {
			w.Metadata = map[string]interface{}{}
		}
		if ds.Target != "" {
			w.Metadata[targetKey] = ds.Target
		}
		if exp.Name != "" {
			w.Metadata[experimentKey] = exp.Name
		}
		if sc != nil {
			sw, err := sc.ExportWeights()
			if err != nil {
				return nil, err
			}
			w.Metadata[scalerKey] = sw
		}
		rep.Weights = w
	}

	if exp.Save != "" {
		if opts.store == nil {
			return nil, errors.NewValueError("train", "no registry available to save the model")
		}
		if err := opts.store.Save(ctx, exp.Save, rep.Weights); err != nil {
			return nil, err
		}
		rep.SavedAs = exp.Save
	}

	if exp.Plot != "" {
		path := exp.Plot
		if !filepath.IsAbs(path) && opts.plotDir != "" {
			path = filepath.Join(opts.plotDir, path)
		}
		if err := plotRun(run, rep, XTrain, path); err != nil {
			return nil, err
		}
	}

	rep.Duration = time.Since(began)
	logger.Info("training finished", log.DurationMsKey, rep.Duration.Milliseconds())
	return rep, nil
}

func plotRun(run *runner, rep *trainReport, X mat.Matrix, path string) error {
	if run.clusterer != nil {
		if err := plotting.Clusters(X, run.clusterer.Labels(), run.clusterer.Centroids(), path); err != nil {
			return err
		}
		rep.PlotPath = path
		return nil
	}
	if len(rep.Costs) == 0 {
		log.GetLoggerWithName("cli").Warn("no loss curve to plot; the model was not trained iteratively", "path", path)
		return nil
	}
	title := fmt.Sprintf("%s training loss", rep.Kind)
	if err := plotting.LossCurve(rep.Costs, title, path); err != nil {
		return err
	}
	rep.PlotPath = path
	return nil
}

// evaluate computes the metrics that fit the model kind on (X, y).
func evaluate(exp *config.Experiment, run *runner, X, y *mat.Dense) ([]metric, error) {
	if run.clusterer != nil {
		return clusterMetrics(run.clusterer, X)
	}

	pred, err := run.predict(X)
	if err != nil {
		return nil, err
	}
	yv, err := linalg.ColumnVector(y)
	if err != nil {
		return nil, err
	}
	pv, err := linalg.ColumnVector(pred)
	if err != nil {
		return nil, err
	}

	switch {
	case run.classifier != nil:
		classes, err := run.classifier.PredictClass(X)
		if err != nil {
			return nil, err
		}
		cv, err := linalg.ColumnVector(classes)
		if err != nil {
			return nil, err
		}
		return classificationMetrics(yv, pv, cv)
	case run.net != nil && exp.Model.Cost != "mse" && exp.Model.Activation != "linear":
		// 既定のクロスエントロピー基準では出力を確率とみなす
		cv := mat.NewVecDense(pv.Len(), nil)
		for i := 0; i < pv.Len(); i++ {
			if pv.AtVec(i) >= 0.5 {
				cv.SetVec(i, 1)
			}
		}
		return classificationMetrics(yv, pv, cv)
	default:
		return regressionMetrics(yv, pv)
	}
}

func classificationMetrics(y, prob, class *mat.VecDense) ([]metric, error) {
	acc, err := metrics.Accuracy(y, class)
	if err != nil {
		return nil, err
	}
	out := []metric{{"accuracy", acc}}
	if f1, err := metrics.F1Score(y, class); err == nil {
		out = append(out, metric{"f1", f1})
	}
	if ll, err := metrics.LogLoss(y, prob); err == nil {
		out = append(out, metric{"log_loss", ll})
	}
	if auc, err := metrics.AUC(y, prob); err == nil {
		out = append(out, metric{"auc", auc})
	}
	return out, nil
}

func regressionMetrics(y, pred *mat.VecDense) ([]metric, error) {
	mse, err := metrics.MSE(y, pred)
	if err != nil {
		return nil, err
	}
	out := []metric{{"mse", mse}}
	if rmse, err := metrics.RMSE(y, pred); err == nil {
		out = append(out, metric{"rmse", rmse})
	}
	if mae, err := metrics.MAE(y, pred); err == nil {
		out = append(out, metric{"mae", mae})
	}
	if r2, err := metrics.R2Score(y, pred); err == nil {
		out = append(out, metric{"r2", r2})
	}
	return out, nil
}

// clusterMetrics reports the inertia of X against the fitted centroids.
func clusterMetrics(km *kmeans.KMeans, X mat.Matrix) ([]metric, error) {
	dist, err := km.Transform(X)
	if err != nil {
		return nil, err
	}
	r, k := dist.Dims()
	inertia := 0.0
	for i := 0; i < r; i++ {
		best := dist.At(i, 0)
		for j := 1; j < k; j++ {
			best = min(best, dist.At(i, j))
		}
		inertia += best * best
	}
	return []metric{
		{"inertia", inertia},
		{"train_inertia", km.Inertia()},
		{"iterations", float64(km.NIter())},
	}, nil
}
