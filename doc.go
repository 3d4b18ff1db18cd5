// Package gomachine is a small machine learning toolkit for Go built on
// gonum matrices.
//
// It provides batch-trained models, the optimizers that train them and a
// command line tool that runs whole experiments from a YAML file.
//
// # Quick Start
//
// Fitting a linear regression in closed form:
//
//	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
//	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})
//
//	lr := linreg.NewLinRegressor()
//	if err := lr.Fit(X, y); err != nil {
//	    log.Fatal(err)
//	}
//	pred, err := lr.Predict(mat.NewDense(1, 1, []float64{5}))
//
// Passing an optimizer switches to iterative training, and Costs then
// returns the loss history:
//
//	lr := linreg.NewLinRegressor(
//	    linreg.WithOptimizer(optim.DefaultGradientDesc()),
//	    linreg.WithRegularization(reg),
//	)
//
// # Packages
//
//   - learning/linreg, learning/logistic: linear and logistic regression
//   - learning/kmeans: k-means and mini-batch k-means clustering
//   - learning/nnet: feed-forward neural networks trained by backpropagation
//   - learning/gp: Gaussian process regression
//   - learning/optim: gradient descent, SGD, AdaGrad and L-BFGS
//   - learning/toolkit: activations, costs, kernels and regularizers
//   - preprocessing: standard and min-max scalers
//   - metrics: regression and classification metrics
//   - dataset: CSV and memory-mapped .gmx loading, train/test split
//   - core/model: estimator base type and the ModelWeights exchange format
//   - pkg/errors, pkg/log: structured errors and logging
//
// The gomachine command (cmd/gomachine) wraps these packages with a SQLite
// model registry, viper configuration and gonum/plot charts.
package gomachine
