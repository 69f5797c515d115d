package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("import queued")

	if !strings.Contains(buf.String(), "import queued") {
		t.Errorf("Expected output to contain message, got: %s", buf.String())
	}
}

func TestNewFromConfig_Level(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		{name: "debug", level: "debug", want: zerolog.DebugLevel},
		{name: "upper case warn", level: "WARN", want: zerolog.WarnLevel},
		{name: "empty falls back to info", level: "", want: zerolog.InfoLevel},
		{name: "garbage falls back to info", level: "loud", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := NewFromConfig(tt.level, "json")
			if got := log.GetLevel(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"step": "normalize",
	})

	log.Info().Msg("step done")

	if !strings.Contains(buf.String(), `"step":"normalize"`) {
		t.Errorf("Expected step field, got: %s", buf.String())
	}
}

func TestForDeclaration(t *testing.T) {
	buf := &bytes.Buffer{}
	log := ForDeclaration(NewWithWriter(buf), "decl-1", "acc-1")

	log.Info().Msg("started")

	out := buf.String()
	if !strings.Contains(out, `"declaration_id":"decl-1"`) || !strings.Contains(out, `"account_id":"acc-1"`) {
		t.Errorf("Expected identifiers in output, got: %s", out)
	}
}
