package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quillworks/quill/internal/logger"
	"github.com/quillworks/quill/internal/output"
	"github.com/quillworks/quill/pkg/transform"
)

// engineStatus is one row of the engines report.
type engineStatus struct {
	Mode    string `json:"mode" yaml:"mode"`
	Backend string `json:"backend" yaml:"backend"`
}

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "Show which backend serves each mode",
	Long: `Probe backend availability and report the backend each mode resolves to
under the current settings.

With --load, the resolved backend for the default mode is also prepared:
local backends load their model, reporting progress as they go.`,
	RunE: runEngines,
}

func init() {
	rootCmd.AddCommand(enginesCmd)

	flags := enginesCmd.Flags()
	flags.StringP("engine", "e", "", "backend preference: auto, native-ai, local-gpu, local-wasm, remote-api")
	flags.String("local-model", "", "model id for the local backends")
	flags.Bool("load", false, "also load the resolved backend")
	flags.String("format", "text", "output format: text, json, jsonl, yaml")

	_ = viper.BindPFlag("engine", flags.Lookup("engine"))
	_ = viper.BindPFlag("local_model", flags.Lookup("local-model"))
}

func runEngines(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	settings := settingsFromConfig()
	if err := settings.Validate(); err != nil {
		logError("%v", err)
		return err
	}

	r := buildRouter(settings, 2*time.Minute)
	defer func() { _ = r.Close() }()

	resolutions := r.Resolutions(ctx, settings)

	formatStr, _ := cmd.Flags().GetString("format")
	if formatStr == string(output.FormatText) {
		for _, res := range resolutions {
			fmt.Printf("%-10s -> %s\n", res.Mode, res.Backend)
		}
	} else {
		writer, err := output.NewWriter(os.Stdout, output.Format(formatStr))
		if err != nil {
			return err
		}
		for _, res := range resolutions {
			row := engineStatus{Mode: string(res.Mode), Backend: string(res.Backend)}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
		if err := writer.Close(); err != nil {
			return err
		}
	}

	if load, _ := cmd.Flags().GetBool("load"); load {
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-r.Events():
					switch e := ev.(type) {
					case transform.ProgressEvent:
						logInfo("loading: %.0f%% %s", e.Progress.Progress, e.Progress.Text)
					case transform.ReadyEvent:
						logInfo("engine ready")
						return
					case transform.ErrorEvent:
						logError("load failed: %s", e.Err)
						return
					}
				}
			}
		}()
		err := r.Load(ctx, settings)
		<-done
		if err != nil {
			return err
		}
	}
	return nil
}
