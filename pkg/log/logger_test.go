package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	benchErrors "github.com/YuminosukeSato/modelbench/pkg/errors"
)

func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message", "warning_code", "TEST_WARNING")
	testLogger.Error("error message", fmt.Errorf("test error"), "error_code", "TEST_ERROR")

	if buffer.Len() == 0 {
		t.Fatal("Expected log output, got empty buffer")
	}
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !testLogger.ContainsField("key1", "value1") {
		t.Error("Expected field key1=value1 not found")
	}
	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField(ErrAttrKey, "test error") {
		t.Error("Error's leading error value should be stored under ErrAttrKey")
	}
}

func TestTestLoggerLevelFilter(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelWarn)

	testLogger.Debug("hidden debug")
	testLogger.Info("hidden info")
	testLogger.Warn("visible warn")

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0]["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entries[0]["level"])
	}
	if testLogger.Enabled(context.Background(), LevelInfo) {
		t.Error("Info should not be enabled at Warn level")
	}
}

func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	logger := testLogger.With(ConfigKey, "NuSVR", ParamNameKey, "nu")
	logger.Info("Configuration point done", ComplexityKey, 12)

	if !testLogger.ContainsField(ConfigKey, "NuSVR") {
		t.Error("With fields should be carried into records")
	}
	if !testLogger.ContainsField(ComplexityKey, 12.0) {
		t.Error("Call-site fields missing")
	}
}

func TestTestLoggerProvider(t *testing.T) {
	provider, testLogger := NewTestLoggerProvider(LevelInfo)
	SetProvider(provider)
	defer SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo, "json"))

	GetLoggerWithName("bench.sweep").Info("hello")
	if !testLogger.ContainsField(ComponentKey, "bench.sweep") {
		t.Error("GetLoggerWithName should tag records with the component")
	}

	benchErrors.Warn(benchErrors.NewConvergenceWarning("NuSVR", 10, ""))
	if !testLogger.ContainsMessage("NuSVR failed to converge") {
		t.Error("Warnings should be bridged to the installed provider")
	}

	testLogger.Clear()
	provider.SetLevel(LevelError)
	GetLogger().Info("dropped")
	if testLogger.ContainsMessage("dropped") {
		t.Error("SetLevel should filter lower records")
	}
}

func TestZerologProviderJSON(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProvider(&buf, LevelDebug, "json")

	logger := provider.GetLoggerWithName("ensemble").With(NEstimatorsKey, 15)
	logger.Info("OOB point", OOBErrorKey, 0.25)

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "OOB point" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry[ComponentKey] != "ensemble" {
		t.Errorf("%s = %v", ComponentKey, entry[ComponentKey])
	}
	if entry[NEstimatorsKey] != 15.0 {
		t.Errorf("%s = %v", NEstimatorsKey, entry[NEstimatorsKey])
	}
	if entry[OOBErrorKey] != 0.25 {
		t.Errorf("%s = %v", OOBErrorKey, entry[OOBErrorKey])
	}
}

func TestZerologProviderStacktrace(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProvider(&buf, LevelDebug, "json")

	err := benchErrors.NewValueError("Fit", "bad input")
	provider.GetLogger().Error("fit failed", err)

	var entry map[string]interface{}
	if jerr := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); jerr != nil {
		t.Fatal(jerr)
	}
	if entry[ErrAttrKey] != err.Error() {
		t.Errorf("%s = %v, want %v", ErrAttrKey, entry[ErrAttrKey], err.Error())
	}
	st, ok := entry[StacktraceAttrKey].(string)
	if !ok || !strings.Contains(st, "logger_test.go") {
		t.Errorf("stacktrace should reference the caller, got %v", entry[StacktraceAttrKey])
	}
}

func TestZerologProviderLevel(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProvider(&buf, LevelWarn, "json")
	logger := provider.GetLogger()

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("Info should be suppressed at Warn level, got %q", buf.String())
	}
	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("Debug should not be enabled")
	}
	if !logger.Enabled(context.Background(), LevelError) {
		t.Error("Error should be enabled")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupLoggerRejectsFormat(t *testing.T) {
	if err := SetupLogger("info", "xml", &bytes.Buffer{}); err == nil {
		t.Error("unknown format should be rejected")
	}
	if err := SetupLogger("info", "console", &bytes.Buffer{}); err != nil {
		t.Errorf("console format should be accepted: %v", err)
	}
}

func TestSetProviderFields(t *testing.T) {
	var buf bytes.Buffer
	SetProvider(NewZerologProvider(&buf, LevelDebug, "json"))
	defer SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo, "json"))

	SetProviderFields(RunIDKey, "run-1")
	GetLoggerWithName("bench.sweep").Info("Sweep point done")
	GetLogger().Error("failed", benchErrors.NewValueError("Fit", "bad input"))
	benchErrors.Warn(benchErrors.NewConvergenceWarning("SGDClassifier", 5, ""))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 records, got %d: %q", len(lines), buf.String())
	}
	for _, line := range lines {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatal(err)
		}
		if entry[RunIDKey] != "run-1" {
			t.Errorf("%s = %v in %q", RunIDKey, entry[RunIDKey], line)
		}
	}
}

func TestSetProviderFieldsWrapsTestProvider(t *testing.T) {
	provider, testLogger := NewTestLoggerProvider(LevelInfo)
	SetProvider(provider)
	defer SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo, "json"))

	SetProviderFields(RunIDKey, "run-2")
	GetLoggerWithName("chart").Info("Figure saved")

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0][RunIDKey] != "run-2" || entries[0][ComponentKey] != "chart" {
		t.Errorf("entry = %v", entries[0])
	}
}
