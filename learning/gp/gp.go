// Package gp はガウス過程回帰を提供します。
package gp

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/learning/toolkit"
	"github.com/gomachine/gomachine/linalg"
	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// sampleJitter は事後共分散のCholesky分解が失敗したときに対角へ足す初期値
const sampleJitter = 1e-10

// GaussianProcess is a Gaussian process regressor with a fixed kernel,
// prior mean and observation noise.
type GaussianProcess struct {
	model.BaseEstimator

	kernel toolkit.Kernel
	noise  float64
	mean   MeanFunc

	train *mat.Dense
	chol  *mat.Cholesky
	alpha *mat.VecDense // K⁻¹(y − m(X))
	resid *mat.VecDense // y − m(X)
}

// Option is a functional option for GaussianProcess.
type Option func(*GaussianProcess)

// WithKernel sets the covariance kernel. The default is SquaredExp{Ls: 1, Ampl: 1}.
func WithKernel(k toolkit.Kernel) Option {
	return func(g *GaussianProcess) {
		g.kernel = k
	}
}

// WithNoise は観測ノイズの分散 σ² を設定する（デフォルト 1e-8）
func WithNoise(noise float64) Option {
	return func(g *GaussianProcess) {
		g.noise = noise
	}
}

// WithMean sets the prior mean function. The default is ConstMean{0}.
func WithMean(m MeanFunc) Option {
	return func(g *GaussianProcess) {
		g.mean = m
	}
}

// NewGaussianProcess creates a GaussianProcess.
func NewGaussianProcess(opts ...Option) *GaussianProcess {
	g := &GaussianProcess{
		kernel: toolkit.SquaredExp{Ls: 1, Ampl: 1},
		noise:  1e-8,
		mean:   ConstMean{C: 0},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fit factorises K(X, X) + σ²I and stores the weights used for prediction.
// y must be n×1.
func (g *GaussianProcess) Fit(X, y mat.Matrix) error {
	const op = "GaussianProcess.Fit"
	if g.kernel == nil || g.mean == nil {
		return errors.NewValidationError("kernel", "kernel and mean must not be nil", nil)
	}
	if g.noise < 0 || math.IsNaN(g.noise) {
		return errors.NewValidationError("noise", "must be non-negative", g.noise)
	}
	if X == nil || y == nil {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	yv, err := linalg.ColumnVector(y)
	if err != nil {
		return err
	}
	if yv.Len() != n {
		return errors.NewDimensionError(op, n, yv.Len(), 0)
	}

	logger := log.GetLoggerWithName("gp").With(log.ModelNameKey, "GaussianProcess")
	began := time.Now()

	K := toolkit.GramMatrix(g.kernel, X, X)
	for i := 0; i < n; i++ {
		K.Set(i, i, K.At(i, i)+g.noise)
	}
	chol, err := linalg.Cholesky(K)
	if err != nil {
		return errors.NewModelError(op, "kernel matrix factorisation failed", err)
	}

	resid := mat.NewVecDense(n, nil)
	resid.SubVec(yv, meanVector(g.mean, X))
	var alpha mat.VecDense
	if err := chol.SolveVecTo(&alpha, resid); err != nil && !isCondition(err) {
		return errors.NewModelError(op, "solve failed", err)
	}

	g.train = mat.DenseCopyOf(X)
	g.chol = chol
	g.alpha = &alpha
	g.resid = resid
	g.SetFitted()

	logger.Debug("fit finished",
		log.SamplesKey, n,
		log.FeaturesKey, d,
		"log_marginal_likelihood", g.LogMarginalLikelihood(),
		log.DurationMsKey, time.Since(began).Milliseconds(),
	)
	return nil
}

func isCondition(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond)
}

func (g *GaussianProcess) checkInput(method string, X mat.Matrix) error {
	if !g.IsFitted() {
		return errors.NewNotFittedError("GaussianProcess", method)
	}
	if X == nil {
		return errors.Wrap(errors.ErrEmptyData, "GaussianProcess."+method)
	}
	r, c := X.Dims()
	if r == 0 {
		return errors.Wrap(errors.ErrEmptyData, "GaussianProcess."+method)
	}
	if _, d := g.train.Dims(); c != d {
		return errors.NewDimensionError("GaussianProcess."+method, d, c, 1)
	}
	return nil
}

// Predict returns the posterior mean m(X*) + K*ᵀα as an n×1 matrix.
func (g *GaussianProcess) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := g.checkInput("Predict", X); err != nil {
		return nil, err
	}
	mean := g.posteriorMean(X, toolkit.GramMatrix(g.kernel, g.train, X))
	r := mean.Len()
	return mat.NewDense(r, 1, mean.RawVector().Data), nil
}

func (g *GaussianProcess) posteriorMean(X mat.Matrix, Ks *mat.Dense) *mat.VecDense {
	mean := meanVector(g.mean, X)
	var kAlpha mat.VecDense
	kAlpha.MulVec(Ks.T(), g.alpha)
	mean.AddVec(mean, &kAlpha)
	return mean
}

// Posterior returns the posterior mean and covariance K** − vᵀv at X,
// where v = L⁻¹K* and L is the Cholesky factor of the training kernel matrix.
func (g *GaussianProcess) Posterior(X mat.Matrix) (*mat.VecDense, *mat.SymDense, error) {
	if err := g.checkInput("Posterior", X); err != nil {
		return nil, nil, err
	}
	Ks := toolkit.GramMatrix(g.kernel, g.train, X)
	mean := g.posteriorMean(X, Ks)

	var L mat.TriDense
	g.chol.LTo(&L)
	var v mat.Dense
	if err := L.SolveTo(&v, false, Ks); err != nil && !isCondition(err) {
		return nil, nil, errors.Wrap(err, "GaussianProcess.Posterior")
	}

	var vtv mat.Dense
	vtv.Mul(v.T(), &v)
	Kss := toolkit.GramMatrix(g.kernel, X, X)
	m := mean.Len()
	cov := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			// 数値誤差で非対称になるのを防ぐため上下の平均を取る
			c := 0.5*(Kss.At(i, j)+Kss.At(j, i)) - 0.5*(vtv.At(i, j)+vtv.At(j, i))
			cov.SetSym(i, j, c)
		}
	}
	return mean, cov, nil
}

// LogMarginalLikelihood returns log p(y | X) = −½ rᵀα − ½ log|K| − n/2 log 2π
// with r = y − m(X).
func (g *GaussianProcess) LogMarginalLikelihood() float64 {
	if !g.IsFitted() {
		return math.NaN()
	}
	n := float64(g.resid.Len())
	return -0.5*mat.Dot(g.resid, g.alpha) - 0.5*g.chol.LogDet() - 0.5*n*math.Log(2*math.Pi)
}

// Sample draws n functions from the posterior at X. Column j of the
// returned len(X)×n matrix is one draw.
func (g *GaussianProcess) Sample(X mat.Matrix, n int, seed uint64) (*mat.Dense, error) {
	if n < 1 {
		return nil, errors.NewValidationError("n", "must be at least 1", n)
	}
	mean, cov, err := g.Posterior(X)
	if err != nil {
		return nil, err
	}
	m := mean.Len()

	// 事後共分散は半正定値なので、分解できるまで対角に小さな値を足す
	var chol mat.Cholesky
	jitter := sampleJitter
	ok := chol.Factorize(cov)
	for tries := 0; !ok && tries < 8; tries++ {
		jittered := mat.NewSymDense(m, nil)
		jittered.CopySym(cov)
		for i := 0; i < m; i++ {
			jittered.SetSym(i, i, jittered.At(i, i)+jitter)
		}
		ok = chol.Factorize(jittered)
		jitter *= 10
	}
	if !ok {
		return nil, errors.NewModelError("GaussianProcess.Sample", "posterior covariance factorisation failed", errors.ErrNotPositiveDefinite)
	}
	var L mat.TriDense
	chol.LTo(&L)

	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	z := mat.NewDense(m, n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			z.Set(i, j, normal.Rand())
		}
	}

	var out mat.Dense
	out.Mul(&L, z)
	for j := 0; j < n; j++ {
		col := out.ColView(j).(*mat.VecDense)
		col.AddVec(col, mean)
	}
	return &out, nil
}

// Noise は観測ノイズの分散
func (g *GaussianProcess) Noise() float64 { return g.noise }
