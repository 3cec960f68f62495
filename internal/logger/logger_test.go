package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInitLevelAndFormat(t *testing.T) {
	l := Init("debug", "json")
	if l.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", l.GetLevel())
	}
	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.WithField("candidate_id", "c-1").Info("hello")
	if !strings.Contains(buf.String(), `"candidate_id":"c-1"`) {
		t.Fatalf("expected json output, got %s", buf.String())
	}
}

func TestInitUnknownLevelFallsBack(t *testing.T) {
	l := Init("loud", "text")
	l.SetOutput(&bytes.Buffer{})
	if l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info fallback, got %s", l.GetLevel())
	}
}
