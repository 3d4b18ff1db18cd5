package metrics

import (
	"math"
	"sort"

	"github.com/gomachine/gomachine/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// logLossEps は対数損失で確率をクリップする幅
const logLossEps = 1e-15

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 − 正解率）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// binaryCounts は陽性ラベル1に対する TP, FP, FN を数える
func binaryCounts(op string, yTrue, yPred *mat.VecDense) (tp, fp, fn int, err error) {
	n, err := checkPair(op, yTrue, yPred)
	if err != nil {
		return 0, 0, 0, err
	}
	if err := checkBinary(op, yTrue); err != nil {
		return 0, 0, 0, err
	}
	if err := checkBinary(op, yPred); err != nil {
		return 0, 0, 0, err
	}
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i) == 1, yPred.AtVec(i) == 1
		switch {
		case t && p:
			tp++
		case !t && p:
			fp++
		case t && !p:
			fn++
		}
	}
	return tp, fp, fn, nil
}

// Precision は適合率 TP/(TP+FP) を計算する。
// 陽性の予測が一つもない場合は UndefinedMetricWarning を出して 0 を返す。
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	tp, fp, _, err := binaryCounts("Precision", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if tp+fp == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples", 0))
		return 0, nil
	}
	return float64(tp) / float64(tp+fp), nil
}

// Recall は再現率 TP/(TP+FN) を計算する
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	tp, _, fn, err := binaryCounts("Recall", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if tp+fn == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples", 0))
		return 0, nil
	}
	return float64(tp) / float64(tp+fn), nil
}

// F1Score は適合率と再現率の調和平均 2TP/(2TP+FP+FN) を計算する
func F1Score(yTrue, yPred *mat.VecDense) (float64, error) {
	tp, fp, fn, err := binaryCounts("F1Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	denom := 2*tp + fp + fn
	if denom == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("f1", "no true nor predicted samples", 0))
		return 0, nil
	}
	return float64(2*tp) / float64(denom), nil
}

// LogLoss は二値分類の対数損失を計算する。yPred は陽性クラスの確率。
func LogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("LogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("LogLoss", yTrue); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yPred.AtVec(i), logLossEps, 1-logLossEps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// AUC はROC曲線下面積を順位統計（Mann-Whitney U）で計算する。同順位は平均順位。
// 片方のクラスしかない場合は UndefinedMetricWarning を出して 0.5 を返す。
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b]) })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg, rankSum float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// AUCMatrix は行列の第1列を使ってAUCを計算する
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := firstColumns("AUCMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return AUC(t, p)
}

func firstColumns(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if yTrue == nil || yPred == nil {
		return nil, nil, errors.NewValueError(op, "nil matrix")
	}
	rt, ct := yTrue.Dims()
	rp, cp := yPred.Dims()
	if rt == 0 || ct == 0 || rp == 0 || cp == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if rt != rp {
		return nil, nil, errors.NewDimensionError(op, rt, rp, 0)
	}
	return mat.NewVecDense(rt, mat.Col(nil, 0, yTrue)), mat.NewVecDense(rp, mat.Col(nil, 0, yPred)), nil
}

// ConfusionMatrix は混同行列を返す。行が真のラベル、列が予測ラベルで、
// ラベルは昇順に並ぶ。
func ConfusionMatrix(yTrue, yPred *mat.VecDense) (*mat.Dense, []float64, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[float64]struct{})
	for i := 0; i < n; i++ {
		seen[yTrue.AtVec(i)] = struct{}{}
		seen[yPred.AtVec(i)] = struct{}{}
	}
	labels := make([]float64, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Float64s(labels)

	pos := make(map[float64]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		r, c := pos[yTrue.AtVec(i)], pos[yPred.AtVec(i)]
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return cm, labels, nil
}
