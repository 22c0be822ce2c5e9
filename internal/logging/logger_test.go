package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	origOutput := log.Writer()
	origFlags := log.Flags()
	defer func() {
		log.SetOutput(origOutput)
		log.SetFlags(origFlags)
	}()

	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFlags(0)

	fn()
	return buf.String()
}

func TestStdLoggerPrintf(t *testing.T) {
	l := NewStdLogger(false)
	out := captureLog(t, func() { l.Printf("hello %s", "world") })
	if !strings.Contains(out, "hello world") {
		t.Fatalf("output = %q, want to contain %q", out, "hello world")
	}
}

func TestStdLoggerDebugfSuppressedByDefault(t *testing.T) {
	l := NewStdLogger(false)
	out := captureLog(t, func() { l.Debugf("should not appear") })
	if out != "" {
		t.Fatalf("output = %q, want empty", out)
	}
}

func TestStdLoggerDebugfEnabled(t *testing.T) {
	l := NewStdLogger(true)
	out := captureLog(t, func() { l.Debugf("visible") })
	if !strings.Contains(out, "visible") {
		t.Fatalf("output = %q, want to contain %q", out, "visible")
	}
}
