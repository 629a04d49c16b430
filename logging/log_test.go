package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestApplicationLogPrefix(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{
		ApplicationLogPrefix: "[test]",
		ApplicationLogOutput: &buf,
	})

	logrus.Info("hello")

	if !strings.HasPrefix(buf.String(), "[test]") {
		t.Errorf("missing prefix in log output: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("missing message in log output: %s", buf.String())
	}
}

func TestDefaultLogWithFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{ApplicationLogOutput: &buf})

	l := (&DefaultLog{}).WithFields(map[string]interface{}{"component": "cache"})
	l.Infof("stored %d entries", 3)

	out := buf.String()
	if !strings.Contains(out, "component=cache") {
		t.Errorf("missing field in log output: %s", out)
	}
	if !strings.Contains(out, "stored 3 entries") {
		t.Errorf("missing message in log output: %s", out)
	}
}
