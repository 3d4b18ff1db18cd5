package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gomachine/gomachine/dataset"
	"github.com/gomachine/gomachine/pkg/errors"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a numeric CSV file to the .gmx binary matrix format",
	Long: `Convert reads every column of a numeric CSV file and writes it as a
.gmx matrix (8-byte magic, row and column counts, little-endian float64
values in row-major order). Train and predict memory-map .gmx files
instead of parsing text.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, _ := cmd.Flags().GetString("in")
		out, _ := cmd.Flags().GetString("out")
		noHeader, _ := cmd.Flags().GetBool("no-header")
		if in == "" || out == "" {
			return errors.NewValueError("convert", "--in and --out are required")
		}

		rows, cols, err := convertCSV(in, out, noHeader)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d x %d matrix to %s\n", rows, cols, out)
		return nil
	},
}

// convertCSV writes every column of the CSV file in to the .gmx file out.
func convertCSV(in, out string, noHeader bool) (int, int, error) {
	ds, err := dataset.LoadCSVFile(in, dataset.CSVOptions{Header: !noHeader, NoTarget: true})
	if err != nil {
		return 0, 0, err
	}
	if err := dataset.WriteBinary(out, ds.X); err != nil {
		return 0, 0, err
	}
	r, c := ds.X.Dims()
	return r, c, nil
}

func init() {
	convertCmd.Flags().String("in", "", "input CSV file")
	convertCmd.Flags().String("out", "", "output .gmx file")
	convertCmd.Flags().Bool("no-header", false, "the CSV file has no header row")

	rootCmd.AddCommand(convertCmd)
}
