package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/internal/registry"
	"github.com/gomachine/gomachine/learning/kmeans"
	"github.com/gomachine/gomachine/learning/linreg"
	"github.com/gomachine/gomachine/learning/logistic"
	"github.com/gomachine/gomachine/learning/nnet"
	"github.com/gomachine/gomachine/pkg/errors"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict with a model from the registry",
	Long: `Predict loads the named model from the registry, applies the scaler it
was trained with and prints one prediction per input row. Logistic models
print the probability and the predicted class; k-means prints the cluster.

By default every column of the data is a feature. Pass --target to drop a
target column first, e.g. when predicting on a labelled test file.`,
	RunE: runPredict,
}

func runPredict(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	dataPath, _ := cmd.Flags().GetString("data")
	target, _ := cmd.Flags().GetString("target")
	noHeader, _ := cmd.Flags().GetBool("no-header")
	if name == "" || dataPath == "" {
		return errors.NewValueError("predict", "--name and --data are required")
	}

	store, err := openRegistry()
	if err != nil {
		return err
	}
	defer store.Close()

	req := dataRequest{path: dataPath, target: target, noHeader: noHeader, noTarget: target == ""}
	return predict(cmd.Context(), store, name, req, cmd.OutOrStdout())
}

// restored is a model rebuilt from registry weights.
type restored interface {
	model.WeightExporter
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// restoreModel rebuilds the model described by w.
func restoreModel(w *model.ModelWeights) (restored, error) {
	var m restored
	switch w.ModelType {
	case linreg.ModelType:
		m = linreg.NewLinRegressor()
	case logistic.ModelType:
		m = logistic.NewLogisticRegressor()
	case kmeans.ModelType:
		m = kmeans.NewKMeans()
	case kmeans.MiniBatchModelType:
		m = kmeans.NewMiniBatchKMeans()
	case nnet.ModelType:
		layers := w.HyperInts("layers")
		net, err := nnet.Default(layers)
		if err != nil {
			return nil, err
		}
		m = net
	default:
		return nil, errors.NewValueError("restoreModel", "unsupported model type "+w.ModelType)
	}
	if err := m.ImportWeights(w); err != nil {
		return nil, err
	}
	return m, nil
}

func predict(ctx context.Context, store *registry.Store, name string, req dataRequest, out io.Writer) error {
	entry, err := store.Get(ctx, name)
	if err != nil {
		return err
	}
	m, err := restoreModel(entry.Weights)
	if err != nil {
		return err
	}
	ds, err := loadData(req)
	if err != nil {
		return err
	}
	X := mat.Matrix(ds.X)
	if _, c := X.Dims(); c != entry.NFeatures {
		return errors.NewDimensionError("predict", entry.NFeatures, c, 1)
	}

	sc, err := metadataScaler(entry.Weights)
	if err != nil {
		return err
	}
	if sc != nil {
		if X, err = sc.Transform(X); err != nil {
			return err
		}
	}

	pred, err := m.Predict(X)
	if err != nil {
		return err
	}

	var classes mat.Matrix
	if lr, ok := m.(*logistic.LogisticRegressor); ok {
		if classes, err = lr.PredictClass(X); err != nil {
			return err
		}
	}
	return writePredictions(out, pred, classes)
}

// writePredictions prints one CSV line per row: the prediction columns,
// followed by the class when classes is not nil.
func writePredictions(w io.Writer, pred, classes mat.Matrix) error {
	r, c := pred.Dims()
	row := make([]string, 0, c+1)
	for i := 0; i < r; i++ {
		row = row[:0]
		for j := 0; j < c; j++ {
			row = append(row, strconv.FormatFloat(pred.At(i, j), 'g', -1, 64))
		}
		if classes != nil {
			row = append(row, strconv.FormatFloat(classes.At(i, 0), 'g', -1, 64))
		}
		if _, err := fmt.Fprintln(w, strings.Join(row, ",")); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	predictCmd.Flags().String("name", "", "registry name of the model")
	predictCmd.Flags().String("data", "", "input data (.csv or .gmx)")
	predictCmd.Flags().String("target", "", "target column to drop before predicting (name or index)")
	predictCmd.Flags().Bool("no-header", false, "the CSV file has no header row")

	rootCmd.AddCommand(predictCmd)
}
