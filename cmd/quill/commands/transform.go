package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quillworks/quill/internal/logger"
	"github.com/quillworks/quill/internal/output"
	"github.com/quillworks/quill/internal/pagetext"
	"github.com/quillworks/quill/pkg/backend"
	"github.com/quillworks/quill/pkg/backend/local"
	"github.com/quillworks/quill/pkg/router"
	"github.com/quillworks/quill/pkg/transform"
)

// Per-mode request deadlines. Translation is interactive and gets a short
// leash; everything else may stream for a while.
const (
	defaultTimeout   = 120 * time.Second
	translateTimeout = 15 * time.Second
)

var transformCmd = &cobra.Command{
	Use:   "transform [text]",
	Short: "Transform text with the selected mode",
	Long: `Transform text: summarize, correct, proofread, translate or expand.

Input comes from the argument, --file, or stdin, in that order of
preference. With --html the input is treated as an HTML page and its
readable text is extracted first.

Examples:
  # Correct grammar, streaming from stdin
  cat draft.txt | quill transform -M correct

  # Translate into Chinese via the remote API
  quill transform -M translate --target-language 中文 "Hello there"

  # Expand notes with a detailed treatment on the local WASM model
  quill transform -M expand --detail-level detailed --engine local-wasm -f notes.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)

	flags := transformCmd.Flags()

	// Input
	flags.StringP("file", "f", "", "read input from file instead of argument/stdin")
	flags.Bool("html", false, "treat input as an HTML page and extract its readable text")

	// Transformation settings
	flags.StringP("mode", "M", "", "mode: summarize, correct, proofread, translate, expand (default proofread)")
	flags.StringP("engine", "e", "", "backend: auto, native-ai, local-gpu, local-wasm, remote-api")
	flags.String("target-language", "", "language for the result text")
	flags.String("tone", "", "tone: professional, casual, academic, concise")
	flags.String("detail-level", "", "expand detail: standard, detailed, creative")
	flags.String("local-model", "", "model id for the local backends")

	// Remote API
	flags.String("api-base-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.StringP("api-model", "m", "", "remote model name")

	// Output
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "text", "output format: text, json, jsonl, yaml")

	// Request
	flags.Duration("timeout", 0, "request timeout (default 120s, 15s for translate)")
	flags.String("request-id", "", "request id to tag events with (default: random)")

	// Bind to viper
	_ = viper.BindPFlag("engine", flags.Lookup("engine"))
	_ = viper.BindPFlag("target_language", flags.Lookup("target-language"))
	_ = viper.BindPFlag("tone", flags.Lookup("tone"))
	_ = viper.BindPFlag("detail_level", flags.Lookup("detail-level"))
	_ = viper.BindPFlag("local_model", flags.Lookup("local-model"))
	_ = viper.BindPFlag("api_base_url", flags.Lookup("api-base-url"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("api_model", flags.Lookup("api-model"))
}

func runTransform(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	text, err := readInput(cmd, args)
	if err != nil {
		logError("%v", err)
		return err
	}

	modeStr, _ := cmd.Flags().GetString("mode")
	mode, err := transform.ParseMode(modeStr)
	if err != nil {
		return err
	}

	settings := settingsFromConfig()
	if err := settings.Validate(); err != nil {
		logError("%v", err)
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
		if mode == transform.ModeTranslate {
			timeout = translateTimeout
		}
	}
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	r := buildRouter(settings, timeout)
	defer func() { _ = r.Close() }()

	requestID, _ := cmd.Flags().GetString("request-id")
	if requestID == "" {
		requestID = uuid.NewString()
		if mode == transform.ModeTranslate {
			requestID = "qt-" + requestID
		}
	}

	start := time.Now()
	result, updates, err := runRequest(ctx, r, router.Request{
		Text:      text,
		Mode:      mode,
		Settings:  settings,
		RequestID: requestID,
	})
	if err != nil {
		logError("%v", err)
		return err
	}

	return writeResult(cmd, output.Result{
		Mode:      string(result.Mode),
		Backend:   result.Backend,
		RequestID: result.RequestID,
		Text:      result.Text,
		Updates:   updates,
		Elapsed:   time.Since(start),
	})
}

// runRequest fires the request and drains events until this request's
// terminal event arrives. Events for other request ids are ignored.
func runRequest(ctx context.Context, r *router.Router, req router.Request) (transform.CompleteEvent, int, error) {
	go r.Generate(ctx, req)

	updates := 0
	for {
		select {
		case <-ctx.Done():
			return transform.CompleteEvent{}, updates, transform.WrapErr(transform.CodeTimeout, "request timed out", ctx.Err())
		case ev := <-r.Events():
			switch e := ev.(type) {
			case transform.ProgressEvent:
				logInfo("loading: %.0f%% %s", e.Progress.Progress, e.Progress.Text)
			case transform.ReadyEvent:
				logInfo("engine ready")
			case transform.UpdateEvent:
				if e.RequestID == req.RequestID {
					updates++
				}
			case transform.CompleteEvent:
				if e.RequestID == req.RequestID {
					return e, updates, nil
				}
			case transform.ErrorEvent:
				if e.RequestID == req.RequestID || e.RequestID == "" {
					return transform.CompleteEvent{}, updates, transform.E(e.Code, e.Err)
				}
			}
		}
	}
}

// settingsFromConfig assembles the settings snapshot from viper, which has
// already merged flags, environment and the config file.
func settingsFromConfig() transform.Settings {
	return transform.Settings{
		Engine:           viper.GetString("engine"),
		TargetLanguage:   viper.GetString("target_language"),
		Tone:             viper.GetString("tone"),
		DetailLevel:      viper.GetString("detail_level"),
		LocalModelID:     viper.GetString("local_model"),
		RemoteAPIBaseURL: viper.GetString("api_base_url"),
		RemoteAPIKey:     viper.GetString("api_key"),
		RemoteAPIModel:   viper.GetString("api_model"),
		AutoSpeak:        viper.GetBool("auto_speak"),
	}
}

// buildRouter wires the detector, local runtimes and router for CLI use. The
// host-native backend is absent in a standalone process; detection reports
// it unavailable and selection moves on.
func buildRouter(settings transform.Settings, timeout time.Duration) *router.Router {
	modelDir := viper.GetString("model_dir")
	if modelDir == "" {
		modelDir = filepath.Join(defaultDataDir(), "models")
	}
	serverBin := viper.GetString("server_bin")
	serverCfg := local.ServerConfig{
		BinPath: serverBin,
		Port:    viper.GetInt("server_port"),
	}

	detector := backend.NewDetector(nil, local.GPUProber(serverBin), local.WASMProber())
	return router.New(router.Config{
		Detector:      detector,
		LocalFactory:  local.DefaultFactory(serverCfg, modelDir),
		RemoteTimeout: timeout,
	})
}

// readInput resolves the input text: argument, then --file, then stdin. With
// --html the raw input is parsed as a page and its readable text extracted.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	var raw string
	switch {
	case len(args) == 1 && args[0] != "":
		raw = args[0]
	default:
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			data, err := os.ReadFile(path) //#nosec G304 -- CLI tool reads a user-specified input file
			if err != nil {
				return "", fmt.Errorf("read input file: %w", err)
			}
			raw = string(data)
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return "", fmt.Errorf("read stdin: %w", err)
			}
			raw = string(data)
		}
	}

	if html, _ := cmd.Flags().GetBool("html"); html {
		page, err := pagetext.ExtractString(raw)
		if err != nil {
			return "", err
		}
		raw = page.Text
	}

	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("no input text")
	}
	return raw, nil
}

func writeResult(cmd *cobra.Command, res output.Result) error {
	outFile := os.Stdout
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logError("failed to create output file: %v", err)
			return err
		}
		defer func() { _ = f.Close() }()
		outFile = f
	}

	formatStr, _ := cmd.Flags().GetString("format")
	writer, err := output.NewWriter(outFile, output.Format(formatStr))
	if err != nil {
		return err
	}
	if err := writer.Write(res); err != nil {
		return err
	}
	return writer.Close()
}
