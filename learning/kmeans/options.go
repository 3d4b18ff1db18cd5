package kmeans

import (
	"math/rand/v2"
	"strings"

	"github.com/gomachine/gomachine/pkg/errors"
)

// InitAlgorithm はセントロイドの初期化方法
type InitAlgorithm int

const (
	// KPlusPlus は既存セントロイドからの二乗距離に比例した確率で次の中心を選ぶ
	KPlusPlus InitAlgorithm = iota
	// Forgy はランダムに選んだ異なる k 行をそのまま中心にする
	Forgy
	// RandomPartition は各行をランダムなクラスタに割り当て、その平均を中心にする
	RandomPartition
)

func (a InitAlgorithm) String() string {
	switch a {
	case KPlusPlus:
		return "kmeans++"
	case Forgy:
		return "forgy"
	case RandomPartition:
		return "random-partition"
	default:
		return "unknown"
	}
}

// ParseInit converts a name such as "kmeans++", "forgy" or
// "random-partition" into an InitAlgorithm.
func ParseInit(name string) (InitAlgorithm, error) {
	switch strings.ToLower(name) {
	case "", "kmeans++", "k-means++", "kplusplus":
		return KPlusPlus, nil
	case "forgy", "random":
		return Forgy, nil
	case "random-partition", "randompartition":
		return RandomPartition, nil
	default:
		return 0, errors.NewValidationError("init", "unknown initialization algorithm", name)
	}
}

// config は KMeans と MiniBatchKMeans で共有する設定
type config struct {
	k                int
	iters            int
	init             InitAlgorithm
	tol              float64
	seed             uint64
	seeded           bool
	batchSize        int
	maxNoImprovement int
}

// Option configures KMeans and MiniBatchKMeans.
type Option func(*config)

// WithK sets the number of clusters. It must be at least 1.
func WithK(k int) Option {
	return func(c *config) {
		c.k = k
	}
}

// WithIters sets the maximum number of iterations.
func WithIters(iters int) Option {
	return func(c *config) {
		c.iters = iters
	}
}

// WithInit sets the centroid initialization algorithm.
func WithInit(init InitAlgorithm) Option {
	return func(c *config) {
		c.init = init
	}
}

// WithTol sets the stopping tolerance. For KMeans it bounds the largest
// centroid shift, for MiniBatchKMeans the inertia improvement.
func WithTol(tol float64) Option {
	return func(c *config) {
		c.tol = tol
	}
}

// WithSeed fixes the random source used for initialization and sampling.
func WithSeed(seed uint64) Option {
	return func(c *config) {
		c.seed = seed
		c.seeded = true
	}
}

// WithBatchSize はミニバッチのサイズを設定（MiniBatchKMeansのみ）
func WithBatchSize(n int) Option {
	return func(c *config) {
		c.batchSize = n
	}
}

// WithMaxNoImprovement は改善なしで許容する連続イテレーション数を設定（MiniBatchKMeansのみ）
func WithMaxNoImprovement(n int) Option {
	return func(c *config) {
		c.maxNoImprovement = n
	}
}

func (c *config) validate() error {
	if c.k < 1 {
		return errors.NewValidationError("k", "must be at least 1", c.k)
	}
	if c.iters < 1 {
		return errors.NewValidationError("iters", "must be positive", c.iters)
	}
	if c.tol < 0 {
		return errors.NewValidationError("tol", "must be non-negative", c.tol)
	}
	if c.init < KPlusPlus || c.init > RandomPartition {
		return errors.NewValidationError("init", "unknown initialization algorithm", int(c.init))
	}
	if c.batchSize < 1 {
		return errors.NewValidationError("batch_size", "must be positive", c.batchSize)
	}
	return nil
}

func (c *config) newRand() *rand.Rand {
	seed := c.seed
	if !c.seeded {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
