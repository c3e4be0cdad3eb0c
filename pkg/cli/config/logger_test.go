package config_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/mapsdrop/pkg/cli/config"
	"golang.org/x/oauth2"
)

func TestLogger_Configure(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "Valid level: debug", level: "debug"},
		{name: "Valid level: DEBUG (case insensitive)", level: "DEBUG"},
		{name: "Valid level: info", level: "info"},
		{name: "Valid level: WARN", level: "WARN"},
		{name: "Valid level: error", level: "error"},
		{name: "Valid format: json", level: "info", format: "json"},
		{name: "Valid format: CONSOLE", level: "info", format: "CONSOLE"},
		{name: "Invalid level: invalid", level: "invalid", wantErr: true},
		{name: "Invalid level: empty string", level: "", wantErr: true},
		{name: "Invalid format: xml", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := &config.Logger{
				Level:  tt.level,
				Format: tt.format,
				Output: &buf,
			}

			result, err := logger.Configure()
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.V(t, result).NotNil()

			result.Error("test log message")
			gt.S(t, buf.String()).Contains("test log message")
		})
	}
}

func TestLogger_Configure_LevelBehavior(t *testing.T) {
	var buf bytes.Buffer
	logger := &config.Logger{Level: "warn", Format: "json", Output: &buf}

	result, err := logger.Configure()
	gt.NoError(t, err)

	result.Info("hidden message")
	result.Warn("shown message")
	gt.B(t, bytes.Contains(buf.Bytes(), []byte("hidden message"))).False()
	gt.S(t, buf.String()).Contains("shown message")
}

func TestLogger_Configure_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := &config.Logger{Level: "info", Format: "json", Output: &buf}

	result, err := logger.Configure()
	gt.NoError(t, err)

	result.Info("credentials",
		slog.Any("token", &oauth2.Token{AccessToken: "ya29.secret-access", RefreshToken: "1//secret-refresh"}),
		slog.Any("oauth", config.OAuth{ClientID: "client-id", ClientSecret: "very-secret"}),
	)

	out := buf.String()
	gt.S(t, out).Contains("client-id")
	gt.B(t, bytes.Contains(buf.Bytes(), []byte("ya29.secret-access"))).False()
	gt.B(t, bytes.Contains(buf.Bytes(), []byte("1//secret-refresh"))).False()
	gt.B(t, bytes.Contains(buf.Bytes(), []byte("very-secret"))).False()
}

func TestLogger_Flags(t *testing.T) {
	logger := &config.Logger{}
	flags := logger.Flags()
	gt.V(t, len(flags)).Equal(2)

	flagNames := make(map[string]bool)
	for _, flag := range flags {
		if names := flag.Names(); len(names) > 0 {
			flagNames[names[0]] = true
		}
	}

	gt.True(t, flagNames["log-level"])
	gt.True(t, flagNames["log-format"])
}
