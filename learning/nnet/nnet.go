// Package nnet は全結合のフィードフォワード・ニューラルネットワークを提供します。
//
// 重みは1本の平坦なベクトルで保持し、層 l のブロックは
// (size_l + 1) × size_{l+1} の行優先行列（先頭行がバイアス）です。
// 学習は optim パッケージのアルゴリズムで誤差逆伝播の勾配を使って行います。
package nnet

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/learning/optim"
	"github.com/gomachine/gomachine/learning/toolkit"
	"github.com/gomachine/gomachine/linalg"
	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ModelType はエクスポートされた重みのモデル種別
const ModelType = "nnet"

// NeuralNet is a fully connected network with one activation for every layer.
type NeuralNet struct {
	model.BaseEstimator

	layers    []int
	weights   []float64
	optimizer optim.Algorithm
	criterion Criterion
	seed      uint64
	seeded    bool
	costs     []float64
}

// Option is a functional option for NeuralNet.
type Option func(*NeuralNet)

// WithOptimizer sets the training algorithm. The default is StochasticGD.
func WithOptimizer(alg optim.Algorithm) Option {
	return func(nn *NeuralNet) {
		nn.optimizer = alg
	}
}

// WithSeed は重みの初期化に使う乱数シードを固定する
func WithSeed(seed uint64) Option {
	return func(nn *NeuralNet) {
		nn.seed = seed
		nn.seeded = true
	}
}

// New creates a network with the given layer sizes, input first and output
// last, and initialises its weights.
func New(layers []int, criterion Criterion, opts ...Option) (*NeuralNet, error) {
	if err := validateLayers(layers); err != nil {
		return nil, err
	}
	if criterion.Activation.Func == nil || criterion.Activation.Grad == nil || criterion.Cost == nil {
		return nil, errors.NewValidationError("criterion", "activation and cost are required", nil)
	}
	nn := &NeuralNet{
		layers:    append([]int(nil), layers...),
		optimizer: optim.DefaultStochasticGD(),
		criterion: criterion,
	}
	for _, opt := range opts {
		opt(nn)
	}
	nn.weights = initWeights(nn.layers, nn.newRand())
	return nn, nil
}

// Default creates a network using BCECriterion and the default StochasticGD.
func Default(layers []int, opts ...Option) (*NeuralNet, error) {
	return New(layers, BCECriterion(), opts...)
}

func validateLayers(layers []int) error {
	if len(layers) < 2 {
		return errors.NewValidationError("layers", "need at least input and output layers", layers)
	}
	for _, s := range layers {
		if s < 1 {
			return errors.NewValidationError("layers", "every layer needs at least one unit", layers)
		}
	}
	return nil
}

func (nn *NeuralNet) newRand() *rand.Rand {
	seed := nn.seed
	if !nn.seeded {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// initWeights は各層を [−ε, ε], ε = sqrt(6/(in+out)) の一様分布で初期化する
func initWeights(layers []int, rng *rand.Rand) []float64 {
	weights := make([]float64, 0, numWeights(layers))
	for l := 0; l < len(layers)-1; l++ {
		in, out := layers[l]+1, layers[l+1]
		eps := math.Sqrt(6 / float64(in+out))
		u := distuv.Uniform{Min: -eps, Max: eps, Src: rng}
		for i := 0; i < in*out; i++ {
			weights = append(weights, u.Rand())
		}
	}
	return weights
}

func numWeights(layers []int) int {
	n := 0
	for l := 0; l < len(layers)-1; l++ {
		n += (layers[l] + 1) * layers[l+1]
	}
	return n
}

// blockOffset は層 idx のブロックの開始位置
func blockOffset(layers []int, idx int) int {
	off := 0
	for l := 0; l < idx; l++ {
		off += (layers[l] + 1) * layers[l+1]
	}
	return off
}

func layerWeights(layers []int, weights []float64, idx int) *mat.Dense {
	off := blockOffset(layers, idx)
	r, c := layers[idx]+1, layers[idx+1]
	return mat.NewDense(r, c, weights[off:off+r*c])
}

// Fit trains the network on inputs X (n×layers[0]) and targets T
// (n×layers[last]), starting from the current weights.
func (nn *NeuralNet) Fit(X, T mat.Matrix) error {
	return nn.FitContext(context.Background(), X, T)
}

// FitContext は Fit と同じだが、学習をキャンセルできる
func (nn *NeuralNet) FitContext(ctx context.Context, X, T mat.Matrix) error {
	const op = "NeuralNet.Fit"
	if nn.optimizer == nil {
		return errors.NewValidationError("optimizer", "must not be nil", nil)
	}
	if X == nil || T == nil {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	r, c := X.Dims()
	tr, tc := T.Dims()
	if r == 0 {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	if c != nn.layers[0] {
		return errors.NewDimensionError(op, nn.layers[0], c, 1)
	}
	if tr != r {
		return errors.NewDimensionError(op, r, tr, 0)
	}
	if out := nn.layers[len(nn.layers)-1]; tc != out {
		return errors.NewDimensionError(op, out, tc, 1)
	}

	logger := log.GetLoggerWithName("nnet").With(log.ModelNameKey, "NeuralNet")
	logger.Debug("fit started",
		log.SamplesKey, r,
		log.FeaturesKey, c,
		log.OptimizerKey, nn.optimizer.Name(),
		"layers", nn.layers,
	)
	began := time.Now()

	res, err := nn.optimizer.Optimize(ctx, nn, nn.weights, X, T)
	if err != nil {
		return errors.NewModelError(op, "training failed", err)
	}
	nn.weights = res.Params
	nn.costs = res.Costs
	nn.SetFitted()

	logger.Debug("fit finished",
		log.LossKey, res.FinalCost(),
		log.DurationMsKey, time.Since(began).Milliseconds(),
	)
	return nil
}

// Predict runs a forward pass and returns the n×layers[last] output activations.
func (nn *NeuralNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	const op = "NeuralNet.Predict"
	if !nn.IsFitted() {
		return nil, errors.NewNotFittedError("NeuralNet", "Predict")
	}
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	if _, c := X.Dims(); c != nn.layers[0] {
		return nil, errors.NewDimensionError(op, nn.layers[0], c, 1)
	}
	pass, err := nn.forward(nn.weights, X)
	if err != nil {
		return nil, err
	}
	return pass.output, nil
}

// forwardPass は逆伝播に必要な中間値を保持する
type forwardPass struct {
	activations []*mat.Dense // a_l（バイアス列付き）
	z           []*mat.Dense // z_l = a_l W_l
	output      *mat.Dense
}

func (nn *NeuralNet) forward(weights []float64, X mat.Matrix) (*forwardPass, error) {
	nLayers := len(nn.layers) - 1
	pass := &forwardPass{
		activations: make([]*mat.Dense, 0, nLayers),
		z:           make([]*mat.Dense, 0, nLayers),
	}
	a := linalg.AddBias(X)
	for l := 0; l < nLayers; l++ {
		pass.activations = append(pass.activations, a)
		z, err := linalg.Mul(a, layerWeights(nn.layers, weights, l))
		if err != nil {
			return nil, err
		}
		pass.z = append(pass.z, z)
		g := nn.criterion.activate(z)
		if l == nLayers-1 {
			pass.output = g
			break
		}
		a = linalg.AddBias(g)
	}
	return pass, nil
}

// ComputeGrad implements optim.Optimizable with backpropagation.
func (nn *NeuralNet) ComputeGrad(params []float64, inputs, targets mat.Matrix) (float64, []float64, error) {
	const op = "NeuralNet.ComputeGrad"
	if len(params) != numWeights(nn.layers) {
		return 0, nil, errors.NewDimensionError(op, numWeights(nn.layers), len(params), 0)
	}
	pass, err := nn.forward(params, inputs)
	if err != nil {
		return 0, nil, err
	}
	rows, _ := inputs.Dims()
	n := float64(rows)
	nLayers := len(nn.layers) - 1

	// 出力層の誤差
	delta, err := linalg.ElemMul(
		nn.criterion.Cost.Grad(pass.output, targets),
		nn.criterion.gradActiv(pass.z[nLayers-1]),
	)
	if err != nil {
		return 0, nil, err
	}

	grad := make([]float64, len(params))
	for l := nLayers - 1; l >= 0; l-- {
		g, err := linalg.MulT(pass.activations[l], delta)
		if err != nil {
			return 0, nil, err
		}
		off := blockOffset(nn.layers, l)
		for i, v := range linalg.Flatten(g) {
			grad[off+i] = v / n
		}
		if l == 0 {
			break
		}

		// δ_l = (δ_{l+1} W_lᵀ からバイアス列を除いたもの) ⊙ g'(z_{l-1})
		back, err := linalg.MulBT(delta, layerWeights(nn.layers, params, l))
		if err != nil {
			return 0, nil, err
		}
		back, err = linalg.DropFirstCol(back)
		if err != nil {
			return 0, nil, err
		}
		delta, err = linalg.ElemMul(back, nn.criterion.gradActiv(pass.z[l-1]))
		if err != nil {
			return 0, nil, err
		}
	}

	cost := nn.criterion.Cost.Cost(pass.output, targets)
	if reg := nn.criterion.reg(); reg.Name() != "none" {
		idx := nn.nonBiasIndices()
		w := make([]float64, len(idx))
		for i, j := range idx {
			w[i] = params[j]
		}
		cost += reg.Cost(w) / n
		for i, v := range reg.Grad(w) {
			grad[idx[i]] += v / n
		}
	}
	return cost, grad, nil
}

// nonBiasIndices はバイアス行を除いた重みの添字
func (nn *NeuralNet) nonBiasIndices() []int {
	idx := make([]int, 0, len(nn.weights))
	for l := 0; l < len(nn.layers)-1; l++ {
		off := blockOffset(nn.layers, l)
		out := nn.layers[l+1]
		end := off + (nn.layers[l]+1)*out
		for j := off + out; j < end; j++ {
			idx = append(idx, j)
		}
	}
	return idx
}

// LayerWeights returns a copy of the (layers[idx]+1)×layers[idx+1] weight
// block of layer idx. Row 0 holds the biases.
func (nn *NeuralNet) LayerWeights(idx int) (*mat.Dense, error) {
	if idx < 0 || idx >= len(nn.layers)-1 {
		return nil, errors.NewValidationError("idx", "layer index out of range", idx)
	}
	return mat.DenseCopyOf(layerWeights(nn.layers, nn.weights, idx)), nil
}

// Weights は平坦化された全重みのコピーを返す
func (nn *NeuralNet) Weights() []float64 {
	out := make([]float64, len(nn.weights))
	copy(out, nn.weights)
	return out
}

// Layers returns the layer sizes.
func (nn *NeuralNet) Layers() []int {
	return append([]int(nil), nn.layers...)
}

// Costs はイテレーション（エポック）ごとのコスト
func (nn *NeuralNet) Costs() []float64 {
	return nn.costs
}

// ExportWeights implements model.WeightExporter.
func (nn *NeuralNet) ExportWeights() (*model.ModelWeights, error) {
	if !nn.IsFitted() {
		return nil, errors.NewNotFittedError("NeuralNet", "ExportWeights")
	}
	reg := nn.criterion.reg()
	l1, l2 := reg.Strengths()
	return &model.ModelWeights{
		ModelType:    ModelType,
		Version:      model.WeightsVersion,
		Coefficients: nn.Weights(),
		Shape:        []int{len(nn.weights)},
		Hyperparameters: map[string]interface{}{
			"layers":         nn.Layers(),
			"activation":     nn.criterion.Activation.Name,
			"cost":           nn.criterion.Cost.Name(),
			"regularization": reg.Name(),
			"lambda1":        l1,
			"lambda2":        l2,
		},
		IsFitted: true,
	}, nil
}

// ImportWeights implements model.WeightExporter. The layer sizes and
// criterion of the snapshot replace those of nn.
func (nn *NeuralNet) ImportWeights(w *model.ModelWeights) error {
	if err := w.Expect(ModelType); err != nil {
		return err
	}
	layers := w.HyperInts("layers")
	if err := validateLayers(layers); err != nil {
		return err
	}
	if numWeights(layers) != len(w.Coefficients) {
		return errors.NewDimensionError("NeuralNet.ImportWeights", numWeights(layers), len(w.Coefficients), 0)
	}
	criterion, err := NewCriterion(w.HyperString("activation", toolkit.Sigmoid.Name),
		w.HyperString("cost", toolkit.CrossEntropyError{}.Name()))
	if err != nil {
		return err
	}
	reg, err := toolkit.NewRegularization(w.HyperString("regularization", "none"),
		w.HyperFloat("lambda1", 0), w.HyperFloat("lambda2", 0))
	if err != nil {
		return err
	}

	nn.layers = layers
	nn.criterion = criterion.WithRegularization(reg)
	nn.weights = append([]float64(nil), w.Coefficients...)
	if nn.optimizer == nil {
		nn.optimizer = optim.DefaultStochasticGD()
	}
	nn.SetFitted()
	return nil
}
