package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quillworks/quill/internal/logger"
	"github.com/quillworks/quill/pkg/modelcache"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage the local model cache",
	Long: `Manage locally cached model artifacts.

A model's cached artifacts can be exported as a single package file and
imported on another machine, so models downloaded once can be side-loaded
where there is no network access.`,
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached models",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		models, err := store.Models()
		if err != nil {
			return err
		}
		if len(models) == 0 {
			logInfo("no cached models")
			return nil
		}
		for _, m := range models {
			fmt.Println(m)
		}
		return nil
	},
}

var modelExportCmd = &cobra.Command{
	Use:   "export <model-id> <package-file>",
	Short: "Export a cached model to a package file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		initModelLogger()
		store, err := openStore()
		if err != nil {
			return err
		}

		f, err := os.Create(args[1]) //#nosec G304 -- CLI tool writes to user-specified file
		if err != nil {
			return fmt.Errorf("create package file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if err := store.Export(args[0], f, reportProgress); err != nil {
			logError("export failed: %v", err)
			return err
		}
		logInfo("exported %s to %s", args[0], args[1])
		return nil
	},
}

var modelImportCmd = &cobra.Command{
	Use:   "import <model-id> <package-file>",
	Short: "Import a model package into the cache",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		initModelLogger()
		store, err := openStore()
		if err != nil {
			return err
		}

		f, err := os.Open(args[1]) //#nosec G304 -- CLI tool reads a user-specified file
		if err != nil {
			return fmt.Errorf("open package file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if err := store.Import(args[0], f, reportProgress); err != nil {
			logError("import failed: %v", err)
			return err
		}
		logInfo("imported %s from %s", args[0], args[1])
		return nil
	},
}

var modelDeleteCmd = &cobra.Command{
	Use:   "delete <model-id>",
	Short: "Delete a model from the cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		logInfo("deleted %s", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelCmd.AddCommand(modelListCmd, modelExportCmd, modelImportCmd, modelDeleteCmd)

	modelCmd.PersistentFlags().String("cache-dir", "", "model cache directory (default $HOME/.quill/cache)")
	_ = viper.BindPFlag("cache_dir", modelCmd.PersistentFlags().Lookup("cache-dir"))
}

func openStore() (*modelcache.Store, error) {
	dir := viper.GetString("cache_dir")
	if dir == "" {
		dir = filepath.Join(defaultDataDir(), "cache")
	}
	return modelcache.NewStore(dir)
}

func initModelLogger() {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})
}

func reportProgress(pct float64, status string) {
	logInfo("%3.0f%% %s", pct, status)
}
