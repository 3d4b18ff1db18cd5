package kmeans

import (
	"bytes"
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
)

var blobCenters = [][2]float64{{0, 0}, {10, 10}, {-10, 10}}

// blobs は blobCenters の先頭 nBlobs 個を中心とした正規分布の塊を生成する
func blobs(perCluster int, seed uint64) *mat.Dense {
	return nBlobs(3, perCluster, seed)
}

func nBlobs(n, perCluster int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(perCluster*n, 2, nil)
	for c, center := range blobCenters[:n] {
		for i := 0; i < perCluster; i++ {
			row := c*perCluster + i
			X.Set(row, 0, center[0]+rng.NormFloat64()*0.5)
			X.Set(row, 1, center[1]+rng.NormFloat64()*0.5)
		}
	}
	return X
}

// assertSeparated は各塊の点が同じラベルを持ち、塊同士のラベルが異なることを確認する
func assertSeparated(t *testing.T, labels []int, n, perCluster int) {
	t.Helper()
	seen := map[int]bool{}
	for c := 0; c < n; c++ {
		first := labels[c*perCluster]
		for i := 1; i < perCluster; i++ {
			assert.Equal(t, first, labels[c*perCluster+i])
		}
		assert.False(t, seen[first], "blob %d shares a label", c)
		seen[first] = true
	}
}

func TestKMeansFindsSeparatedClusters(t *testing.T) {
	X := blobs(30, 7)
	km := NewKMeans(WithK(3), WithSeed(3))
	require.NoError(t, km.Fit(X))

	labels := km.Labels()
	require.Len(t, labels, 90)
	assertSeparated(t, labels, 3, 30)
	assert.Greater(t, km.NIter(), 0)
	assert.Less(t, km.Inertia(), 90.0)

	pred, err := km.Predict(mat.NewDense(1, 2, []float64{9.5, 10.2}))
	require.NoError(t, err)
	assert.Equal(t, float64(labels[30]), pred.At(0, 0))
}

func TestKMeansInitAlgorithms(t *testing.T) {
	for _, init := range []InitAlgorithm{KPlusPlus, Forgy, RandomPartition} {
		t.Run(init.String(), func(t *testing.T) {
			X := nBlobs(2, 25, 13)
			km := NewKMeans(WithK(2), WithInit(init), WithSeed(21))
			require.NoError(t, km.Fit(X))
			assertSeparated(t, km.Labels(), 2, 25)

			// Inertia はラベルと中心から再計算した値と一致する
			centroids := km.Centroids()
			want := 0.0
			for i, l := range km.Labels() {
				want += sqDist(X.RawRowView(i), centroids.RawRowView(l))
			}
			assert.InDelta(t, want, km.Inertia(), 1e-9)
		})
	}
}

func TestInitCentroidsUseDistinctRows(t *testing.T) {
	X := blobs(10, 1)
	rng := rand.New(rand.NewPCG(1, 2))
	for _, c := range []*mat.Dense{initForgy(X, 3, rng), initKPlusPlus(X, 3, rng)} {
		r, d := c.Dims()
		require.Equal(t, 3, r)
		require.Equal(t, 2, d)
		assert.False(t, mat.Equal(c.RowView(0), c.RowView(1)))
		assert.False(t, mat.Equal(c.RowView(1), c.RowView(2)))
	}
}

func TestKMeansLloydStep(t *testing.T) {
	// 初期中心が (0) と (10) なら1回の更新で平均に移動して収束する
	X := mat.NewDense(4, 1, []float64{0, 2, 9, 11})
	centroids := mat.NewDense(2, 1, []float64{0, 10})
	labels := make([]int, 4)

	inertia := assign(X, centroids, labels)
	assert.Equal(t, []int{0, 0, 1, 1}, labels)
	assert.InDelta(t, 0+4+1+1, inertia, 1e-12)

	next := updateCentroids(X, labels, centroids)
	assert.InDeltaSlice(t, []float64{1, 10}, next.RawMatrix().Data, 1e-12)
	assert.InDelta(t, 1.0, maxShift(centroids, next), 1e-12)
}

func TestKMeansTiesGoToLowestIndex(t *testing.T) {
	centroids := mat.NewDense(2, 1, []float64{-1, 1})
	c, d := nearest([]float64{0}, centroids)
	assert.Equal(t, 0, c)
	assert.Equal(t, 1.0, d)
}

func TestKMeansEmptyClusterKeepsCentroid(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 2})
	prev := mat.NewDense(2, 1, []float64{1, 100})
	labels := []int{0, 0, 0}
	next := updateCentroids(X, labels, prev)
	assert.Equal(t, 1.0, next.At(0, 0))
	assert.Equal(t, 100.0, next.At(1, 0))
}

func TestKMeansTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 10, 10, 10, 11})
	km := NewKMeans(WithK(2), WithSeed(1))
	require.NoError(t, km.Fit(X))

	dist, err := km.Transform(mat.NewDense(1, 2, []float64{0, 0.5}))
	require.NoError(t, err)
	r, c := dist.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 2, c)
	assert.InDelta(t, 0.0, mat.Min(dist), 1e-12)
}

func TestKMeansErrors(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{0, 0, 1, 1})

	var ve *errors.ValidationError
	assert.True(t, errors.As(NewKMeans().Fit(X), &ve), "k is required")

	var valueErr *errors.ValueError
	assert.True(t, errors.As(NewKMeans(WithK(3)).Fit(X), &valueErr), "k larger than rows")

	assert.ErrorIs(t, NewKMeans(WithK(1)).Fit(nil), errors.ErrEmptyData)

	_, err := NewKMeans(WithK(1)).Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	km := NewKMeans(WithK(1))
	require.NoError(t, km.Fit(X))
	_, err = km.Predict(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestKMeansConvergenceWarning(t *testing.T) {
	provider, logger := log.NewTestLoggerProvider(log.LevelWarn)
	log.SetProvider(provider)
	defer log.SetProvider(nil)

	km := NewKMeans(WithK(3), WithIters(1), WithTol(0), WithInit(RandomPartition), WithSeed(5))
	require.NoError(t, km.Fit(blobs(20, 1)))
	assert.Equal(t, 1, km.NIter())
	assert.True(t, logger.ContainsMessage("KMeans failed to converge"))
}

func TestKMeansCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewKMeans(WithK(2)).FitContext(ctx, blobs(5, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKMeansExportImport(t *testing.T) {
	X := blobs(10, 2)
	src := NewKMeans(WithK(3), WithSeed(9), WithInit(Forgy))
	require.NoError(t, src.Fit(X))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(src, &buf))

	dst := NewKMeans()
	require.NoError(t, model.LoadModelFromReader(dst, &buf))
	assert.True(t, mat.Equal(src.Centroids(), dst.Centroids()))
	assert.Equal(t, 3, dst.K())
	assert.Equal(t, Forgy, dst.init)

	p1, err := src.Predict(X)
	require.NoError(t, err)
	p2, err := dst.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1, p2))
}

func TestParseInit(t *testing.T) {
	for _, alg := range []InitAlgorithm{KPlusPlus, Forgy, RandomPartition} {
		got, err := ParseInit(alg.String())
		require.NoError(t, err)
		assert.Equal(t, alg, got)
	}
	_, err := ParseInit("bogus")
	assert.Error(t, err)
}

func TestMiniBatchKMeansFit(t *testing.T) {
	X := blobs(40, 11)
	mb := NewMiniBatchKMeans(WithK(3), WithBatchSize(30), WithSeed(4))
	require.NoError(t, mb.Fit(X))

	labels := mb.Labels()
	require.Len(t, labels, 120)
	assert.NotEqual(t, labels[0], labels[40])
	assert.NotEqual(t, labels[40], labels[80])
	assert.Less(t, mb.Inertia(), 200.0)
	assert.Greater(t, mb.NIterations(), 0)

	dist, err := mb.Transform(X)
	require.NoError(t, err)
	r, c := dist.Dims()
	assert.Equal(t, 120, r)
	assert.Equal(t, 3, c)
}

func TestMiniBatchKMeansFitStream(t *testing.T) {
	X := blobs(50, 3)
	mb := NewMiniBatchKMeans(WithK(3), WithSeed(8))

	// 各バッチに全クラスタの点が含まれるように行を混ぜる
	perm := rand.New(rand.NewPCG(1, 1)).Perm(150)
	ch := make(chan *model.Batch)
	go func() {
		defer close(ch)
		for start := 0; start < 150; start += 30 {
			batch := mat.NewDense(30, 2, nil)
			for i := 0; i < 30; i++ {
				batch.SetRow(i, X.RawRowView(perm[start+i]))
			}
			ch <- &model.Batch{X: batch}
		}
	}()
	require.NoError(t, mb.FitStream(context.Background(), ch))
	assert.Equal(t, 5, mb.NIterations())

	pred, err := mb.Predict(mat.NewDense(3, 2, []float64{0, 0, 10, 10, -10, 10}))
	require.NoError(t, err)
	assert.NotEqual(t, pred.At(0, 0), pred.At(1, 0))
	assert.NotEqual(t, pred.At(1, 0), pred.At(2, 0))
	assert.NotEqual(t, pred.At(0, 0), pred.At(2, 0))
}

func TestMiniBatchKMeansFitStreamCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mb := NewMiniBatchKMeans(WithK(2))
	err := mb.FitStream(ctx, make(chan *model.Batch))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMiniBatchKMeansResumeAfterImport(t *testing.T) {
	X := blobs(20, 5)
	src := NewMiniBatchKMeans(WithK(3), WithSeed(2))
	require.NoError(t, src.PartialFit(X))

	w, err := src.ExportWeights()
	require.NoError(t, err)
	data, err := w.ToJSON()
	require.NoError(t, err)
	var decoded model.ModelWeights
	require.NoError(t, decoded.FromJSON(data))

	dst := NewMiniBatchKMeans()
	require.NoError(t, dst.ImportWeights(&decoded))
	assert.Equal(t, src.counts, dst.counts)
	require.NoError(t, dst.PartialFit(X))

	err = dst.PartialFit(mat.NewDense(2, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

var (
	_ model.Clusterer          = (*KMeans)(nil)
	_ model.Clusterer          = (*MiniBatchKMeans)(nil)
	_ model.StreamingEstimator = (*MiniBatchKMeans)(nil)
	_ model.WeightExporter     = (*KMeans)(nil)
	_ model.WeightExporter     = (*MiniBatchKMeans)(nil)
)

func TestMiniBatchKMeansWithoutConstructor(t *testing.T) {
	X := blobs(20, 5)
	mb := &MiniBatchKMeans{config: config{k: 3, iters: 20, batchSize: 15}}
	require.NotPanics(t, func() {
		require.NoError(t, mb.Fit(X))
	})
	assert.Len(t, mb.Labels(), 60)

	fresh := &MiniBatchKMeans{config: config{k: 2, iters: 1, batchSize: 10}}
	require.NotPanics(t, func() {
		require.NoError(t, fresh.PartialFit(X))
	})
}
