package transform

import (
	"strings"
	"testing"
)

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "https anywhere", url: "https://api.openai.com/v1"},
		{name: "https with port", url: "https://example.com:8443/v1"},
		{name: "http localhost", url: "http://localhost:11434/v1"},
		{name: "http loopback v4", url: "http://127.0.0.1:8080/v1"},
		{name: "http loopback v6", url: "http://[::1]:8080/v1"},
		{name: "http public host", url: "http://api.example.com/v1", wantErr: true},
		{name: "http public ip", url: "http://8.8.8.8/v1", wantErr: true},
		{name: "ftp scheme", url: "ftp://example.com", wantErr: true},
		{name: "no scheme", url: "api.openai.com/v1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBaseURL(tt.url)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %q", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.url, err)
			}
		})
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  bool
	}{
		{name: "zero value", settings: Settings{}},
		{name: "full valid", settings: Settings{
			Engine:           "local-gpu",
			Tone:             "casual",
			DetailLevel:      "detailed",
			RemoteAPIBaseURL: "https://api.openai.com/v1",
		}},
		{name: "bad engine", settings: Settings{Engine: "cloud"}, wantErr: true},
		{name: "bad tone", settings: Settings{Tone: "sarcastic"}, wantErr: true},
		{name: "bad detail", settings: Settings{DetailLevel: "max"}, wantErr: true},
		{name: "insecure base url", settings: Settings{RemoteAPIBaseURL: "http://evil.example.com/v1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSettings_Defaults(t *testing.T) {
	var s Settings
	if got := s.TargetLanguageOrDefault(); got != DefaultTargetLanguage {
		t.Errorf("expected default language %q, got %q", DefaultTargetLanguage, got)
	}
	if got := s.LocalModelOrDefault(); got != DefaultLocalModelID {
		t.Errorf("expected default model %q, got %q", DefaultLocalModelID, got)
	}

	s.TargetLanguage = "中文"
	s.LocalModelID = "custom-model"
	if got := s.TargetLanguageOrDefault(); got != "中文" {
		t.Errorf("expected configured language, got %q", got)
	}
	if got := s.LocalModelOrDefault(); got != "custom-model" {
		t.Errorf("expected configured model, got %q", got)
	}

	// Whitespace-only values fall back too.
	s.TargetLanguage = "   "
	if got := s.TargetLanguageOrDefault(); got != DefaultTargetLanguage {
		t.Errorf("expected default for blank language, got %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	err := E(CodeNoAPIKey, "missing key")
	if got := CodeOf(err); got != CodeNoAPIKey {
		t.Errorf("expected %q, got %q", CodeNoAPIKey, got)
	}

	wrapped := WrapErr(CodeLoadFailed, "load", err)
	if got := CodeOf(wrapped); got != CodeLoadFailed {
		t.Errorf("expected outermost code %q, got %q", CodeLoadFailed, got)
	}

	if got := CodeOf(nil); got != "" {
		t.Errorf("expected empty code for nil, got %q", got)
	}

	if !strings.Contains(wrapped.Error(), CodeLoadFailed) {
		t.Errorf("error string should carry the code: %s", wrapped.Error())
	}
}
