package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gomachine/gomachine/internal/registry"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage the model registry (list, show, delete, export)",
	Long: `Models inspects and maintains the SQLite registry where train --save
stores fitted models.`,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRegistry()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		return formatModelList(cmd.OutOrStdout(), entries)
	},
}

func formatModelList(w io.Writer, entries []registry.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No models stored.")
		return err
	}
	fmt.Fprintf(w, "%-24s  %-18s  %8s  %s\n", "Name", "Kind", "Features", "Created")
	fmt.Fprintln(w, strings.Repeat("-", 76))
	for _, e := range entries {
		name := e.Name
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		fmt.Fprintf(w, "%-24s  %-18s  %8d  %s\n", name, e.Kind, e.NFeatures, e.CreatedAt.Local().Format(time.DateTime))
	}
	_, err := fmt.Fprintf(w, "\n%d models\n", len(entries))
	return err
}

var modelsShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a stored model's weights as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRegistry()
		if err != nil {
			return err
		}
		defer store.Close()

		entry, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := entry.Weights.ToJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete NAME...",
	Short: "Remove models from the registry",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRegistry()
		if err != nil {
			return err
		}
		defer store.Close()

		for _, name := range args {
			if err := store.Delete(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
		}
		return nil
	},
}

var modelsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the whole registry as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		store, err := openRegistry()
		if err != nil {
			return err
		}
		defer store.Close()

		if out == "" || out == "-" {
			return store.ExportYAML(cmd.Context(), cmd.OutOrStdout())
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := store.ExportYAML(cmd.Context(), f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", out)
		return nil
	},
}

func init() {
	modelsExportCmd.Flags().String("out", "", "output file (default: stdout)")

	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsDeleteCmd)
	modelsCmd.AddCommand(modelsExportCmd)

	rootCmd.AddCommand(modelsCmd)
}
