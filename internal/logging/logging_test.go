package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestInitWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(Config{Level: "info", Format: "json"}, &buf)
	t.Cleanup(func() { InitWithWriter(DefaultConfig(), &buf) })

	Info().Str("key", "value").Msg("hello")
	out := buf.String()
	if !strings.Contains(out, `"key":"value"`) || !strings.Contains(out, `"hello"`) {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(Config{Level: "error", Format: "json"}, &buf)
	t.Cleanup(func() { InitWithWriter(DefaultConfig(), &buf) })

	Info().Msg("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info event logged at error level: %s", buf.String())
	}
	Error().Msg("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("error event missing: %s", buf.String())
	}
}

func TestBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(Config{Level: "nonsense", Format: "json"}, &buf)
	t.Cleanup(func() { InitWithWriter(DefaultConfig(), &buf) })

	Debug().Msg("suppressed")
	if buf.Len() != 0 {
		t.Errorf("debug event logged at default level: %s", buf.String())
	}
	Info().Msg("kept")
	if buf.Len() == 0 {
		t.Error("info event missing at default level")
	}
}
