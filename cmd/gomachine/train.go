package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gomachine/gomachine/internal/config"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a model and report metrics on a held-out split",
	Long: `Train reads an experiment file (--experiment) or builds one from flags,
loads the data, optionally scales it, fits the model and prints metrics on
the test split. With --save the fitted model is stored in the registry;
with --plot a loss curve (or, for k-means, a cluster plot) is written.

Examples:
  gomachine train --experiment housing.yaml
  gomachine train --model logistic --data iris.csv --target label --save iris
  gomachine train --model kmeans --k 3 --data points.gmx --plot clusters.png`,
	RunE: runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	exp, err := experimentFromFlags(cmd)
	if err != nil {
		return err
	}
	exp.ApplyDefaults(appConfig)

	opts := trainOptions{plotDir: appConfig.Plot.Dir}
	if exp.Save != "" {
		store, err := openRegistry()
		if err != nil {
			return err
		}
		defer store.Close()
		opts.store = store
	}

	rep, err := train(cmd.Context(), exp, opts)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), rep)
	return nil
}

// experimentFromFlags loads --experiment when given; flags set explicitly
// on the command line override the file.
func experimentFromFlags(cmd *cobra.Command) (*config.Experiment, error) {
	flags := cmd.Flags()
	exp := &config.Experiment{}
	path, _ := flags.GetString("experiment")
	if path != "" {
		loaded, err := config.LoadExperiment(path)
		if err != nil {
			return nil, err
		}
		exp = loaded
	}

	if flags.Changed("model") {
		exp.Model.Kind, _ = flags.GetString("model")
	}
	if flags.Changed("data") {
		exp.Data.Path, _ = flags.GetString("data")
	}
	if flags.Changed("target") {
		exp.Data.Target, _ = flags.GetString("target")
	}
	if flags.Changed("no-header") {
		exp.Data.NoHeader, _ = flags.GetBool("no-header")
	}
	if flags.Changed("test-fraction") || path == "" {
		exp.Data.TestFraction, _ = flags.GetFloat64("test-fraction")
	}
	if flags.Changed("scaler") {
		exp.Scaler, _ = flags.GetString("scaler")
	}
	if flags.Changed("optimizer") {
		exp.Optimizer.Name, _ = flags.GetString("optimizer")
	}
	if flags.Changed("alpha") {
		exp.Optimizer.Alpha, _ = flags.GetFloat64("alpha")
	}
	if flags.Changed("iters") {
		exp.Optimizer.Iters, _ = flags.GetInt("iters")
	}
	if flags.Changed("k") {
		exp.Model.K, _ = flags.GetInt("k")
	}
	if flags.Changed("init") {
		exp.Model.Init, _ = flags.GetString("init")
	}
	if flags.Changed("layers") {
		exp.Model.Layers, _ = flags.GetIntSlice("layers")
	}
	if flags.Changed("seed") {
		exp.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("save") {
		exp.Save, _ = flags.GetString("save")
	}
	if flags.Changed("plot") {
		exp.Plot, _ = flags.GetString("plot")
	}

	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

func printReport(w io.Writer, rep *trainReport) {
	fmt.Fprintf(w, "model:    %s\n", rep.Kind)
	fmt.Fprintf(w, "samples:  %d train, %d test\n", rep.Samples, rep.TestRows)
	fmt.Fprintf(w, "features: %d\n", rep.Features)
	if len(rep.Costs) > 0 {
		fmt.Fprintf(w, "cost:     %.6g -> %.6g (%d steps)\n", rep.Costs[0], rep.Costs[len(rep.Costs)-1], len(rep.Costs))
	}
	fmt.Fprintf(w, "\nmetrics (%s set)\n", rep.Evaluated)
	fmt.Fprintln(w, strings.Repeat("-", 28))
	for _, m := range rep.Metrics {
		fmt.Fprintf(w, "%-14s %13.6g\n", m.Name, m.Value)
	}
	if rep.SavedAs != "" {
		fmt.Fprintf(w, "\nsaved as %q\n", rep.SavedAs)
	}
	if rep.PlotPath != "" {
		fmt.Fprintf(w, "plot written to %s\n", rep.PlotPath)
	}
}

func init() {
	flags := trainCmd.Flags()
	flags.String("experiment", "", "experiment YAML file")
	flags.String("model", "", "model kind: "+strings.Join(modelKinds(), ", "))
	flags.String("data", "", "training data (.csv or .gmx)")
	flags.String("target", "", "target column name or index (default: last column)")
	flags.Bool("no-header", false, "the CSV file has no header row")
	flags.Float64("test-fraction", 0.2, "fraction of rows held out for evaluation (0 = evaluate on training data)")
	flags.String("scaler", "", "feature scaling: none, standard, minmax")
	flags.String("optimizer", "", "optimizer: gd, sgd, adagrad, lbfgs (default: the model's own)")
	flags.Float64("alpha", 0, "learning rate")
	flags.Int("iters", 0, "optimizer iterations or epochs")
	flags.Int("k", 0, "number of clusters (kmeans)")
	flags.String("init", "", "k-means initialisation: kmeans++, forgy, random-partition")
	flags.IntSlice("layers", nil, "layer sizes including input and output (nnet)")
	flags.Uint64("seed", 0, "random seed")
	flags.String("save", "", "store the trained model in the registry under this name")
	flags.String("plot", "", "write a loss curve or cluster plot (.png or .svg)")

	rootCmd.AddCommand(trainCmd)
}

func modelKinds() []string {
	return []string{config.KindLinReg, config.KindLogistic, config.KindKMeans, config.KindNNet, config.KindGP}
}
