package transform

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Default values applied when a Settings field is left empty.
const (
	DefaultTargetLanguage = "English"
	DefaultTone           = "professional"
	DefaultDetailLevel    = "standard"
	DefaultLocalModelID   = "Qwen2.5-0.5B-Instruct-q4f16_1-MLC"
)

// Settings is the caller-owned configuration snapshot passed into every
// engine call. The engine never mutates it; each request receives it by
// value.
type Settings struct {
	// Engine is the user's backend preference: "auto", "native-ai",
	// "local-gpu", "local-wasm" or "remote-api". Empty means auto.
	Engine string `mapstructure:"engine" validate:"omitempty,oneof=auto native-ai local-gpu local-wasm remote-api"`

	// TargetLanguage is the language results should be produced in.
	TargetLanguage string `mapstructure:"target_language"`

	// Tone selects the writing tone for proofread/translate modes.
	Tone string `mapstructure:"tone" validate:"omitempty,oneof=professional casual academic concise"`

	// DetailLevel selects the verbosity for expand mode.
	DetailLevel string `mapstructure:"detail_level" validate:"omitempty,oneof=standard detailed creative"`

	// LocalModelID names the model used by the local backends.
	LocalModelID string `mapstructure:"local_model"`

	// Remote API (OpenAI-compatible chat completions endpoint).
	RemoteAPIBaseURL string `mapstructure:"api_base_url" validate:"omitempty,secureurl"`
	RemoteAPIKey     string `mapstructure:"api_key"`
	RemoteAPIModel   string `mapstructure:"api_model"`

	// AutoSpeak asks the caller's UI to read results aloud. The engine only
	// carries the flag.
	AutoSpeak bool `mapstructure:"auto_speak"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// secureurl: HTTPS anywhere, HTTP only for loopback addresses.
	_ = v.RegisterValidation("secureurl", func(fl validator.FieldLevel) bool {
		return ValidateBaseURL(fl.Field().String()) == nil
	})
	return v
}

// Validate checks field constraints. It does not verify reachability of any
// endpoint.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// ValidateBaseURL enforces the remote endpoint policy: the URL must be HTTPS,
// or HTTP pointing at a loopback address. A non-loopback HTTP URL is rejected
// before any network call is attempted.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" {
			return nil
		}
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			return nil
		}
		return fmt.Errorf("plain HTTP is only allowed for loopback addresses, got %q", host)
	default:
		return fmt.Errorf("unsupported scheme %q (use https, or http for loopback)", u.Scheme)
	}
}

// TargetLanguageOrDefault returns the configured target language, falling
// back to the default.
func (s Settings) TargetLanguageOrDefault() string {
	if strings.TrimSpace(s.TargetLanguage) == "" {
		return DefaultTargetLanguage
	}
	return s.TargetLanguage
}

// LocalModelOrDefault returns the configured local model id, falling back to
// the default.
func (s Settings) LocalModelOrDefault() string {
	if strings.TrimSpace(s.LocalModelID) == "" {
		return DefaultLocalModelID
	}
	return s.LocalModelID
}
