// Package commands implements the CLI commands for quill.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quillworks/quill/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Streaming text transformation with local and remote AI backends",
	Long: `Quill rewrites text: summarize, correct, proofread, translate or expand.

Requests are served by whichever backend is available - the host's built-in
AI capabilities, a GPU-accelerated local model, a WebAssembly local model,
or an OpenAI-compatible remote API - with automatic selection and fallback.

Examples:
  # Proofread text from stdin
  echo "their going to the store" | quill transform -M proofread

  # Translate a file using the remote API
  quill transform -M translate --target-language 中文 -f notes.txt \
      --api-key sk-... --api-model gpt-4o-mini

  # Summarize on a local GPU model
  quill transform -M summarize --engine local-gpu -f article.txt

  # Show which backend serves each mode
  quill engines`,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.quill.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".quill")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("QUILL")
	viper.AutomaticEnv()

	// Also check common API key env vars
	_ = viper.BindEnv("api_key", "QUILL_API_KEY", "OPENAI_API_KEY")

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// defaultDataDir is where local model artifacts live unless overridden.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quill"
	}
	return filepath.Join(home, ".quill")
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
