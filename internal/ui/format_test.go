package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	apperrors "bqstats/pkg/errors"
)

// captureOutput redirects printers to a buffer with colors off
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prevOut := SetOutput(buf)
	prevColor := supportsColor
	supportsColor = false
	t.Cleanup(func() {
		SetOutput(prevOut)
		supportsColor = prevColor
	})
	return buf
}

func TestColorFunc(t *testing.T) {
	// Save original state
	originalSupportsColor := supportsColor
	defer func() {
		supportsColor = originalSupportsColor
	}()

	tests := []struct {
		name          string
		supportsColor bool
		input         string
		expectColored bool
	}{
		{
			name:          "with color support",
			supportsColor: true,
			input:         "test text",
			expectColored: true,
		},
		{
			name:          "without color support",
			supportsColor: false,
			input:         "test text",
			expectColored: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			supportsColor = tt.supportsColor

			funcs := []func(string) string{
				ColorSuccess,
				ColorError,
				ColorWarning,
				ColorInfo,
				ColorProgress,
				ColorBold,
				ColorDim,
			}

			for _, colorFunc := range funcs {
				result := colorFunc(tt.input)

				if tt.expectColored && result == tt.input {
					t.Error("Expected colored output, got plain text")
				}
				if !tt.expectColored && result != tt.input {
					t.Errorf("Expected plain text %q, got %q", tt.input, result)
				}
			}
		})
	}
}

func TestPrinters(t *testing.T) {
	buf := captureOutput(t)

	ShowSuccess("Stats recorded")
	ShowWarning("Schema drift")
	ShowInfo("Dataset utils created.")

	out := buf.String()
	for _, want := range []string{
		"SUCCESS: Stats recorded\n",
		"WARNING: Schema drift\n",
		"INFO: Dataset utils created.\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got %q", want, out)
		}
	}
}

func TestShowHeader(t *testing.T) {
	buf := captureOutput(t)

	ShowHeader("bqstats")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if len(lines[0]) != len(lines[1]) {
		t.Errorf("Header row is not aligned with its border: %q vs %q", lines[0], lines[1])
	}

	// A title wider than the box must not panic
	ShowHeader(strings.Repeat("x", 80))
}

func TestShowError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLines []string
		wantTip   string
	}{
		{
			name:      "plain error with hint",
			err:       errors.New("googleapi: Error 403: Access Denied"),
			wantLines: []string{"ERROR:", "googleapi: Error 403: Access Denied"},
			wantTip:   "BigQuery Data Editor",
		},
		{
			name:      "app error carries its own suggestions",
			err:       apperrors.MissingConfigError("project_id"),
			wantLines: []string{"Missing required settings: project_id", "BQSTATS_PROJECT_ID"},
		},
		{
			name:      "timeout",
			err:       apperrors.New(apperrors.ErrCodeTimeout, "BigQuery list datasets failed"),
			wantLines: []string{"BigQuery list datasets failed"},
			wantTip:   "Increase --timeout",
		},
		{
			name:      "unknown",
			err:       errors.New("something odd"),
			wantLines: []string{"something odd"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureOutput(t)
			ShowError(tt.err)
			out := buf.String()

			for _, want := range tt.wantLines {
				if !strings.Contains(out, want) {
					t.Errorf("Expected %q in %q", want, out)
				}
			}
			if tt.wantTip == "" && strings.Contains(out, "TIP:") {
				t.Errorf("Expected no tip, got %q", out)
			}
			if tt.wantTip != "" && !strings.Contains(out, "TIP: ") {
				t.Errorf("Expected a tip, got %q", out)
			}
			if tt.wantTip != "" && !strings.Contains(out, tt.wantTip) {
				t.Errorf("Expected tip %q in %q", tt.wantTip, out)
			}
		})
	}
}

func TestTable(t *testing.T) {
	buf := captureOutput(t)

	table := NewTable()
	table.AddHeader("Dataset", "Status")
	table.AddRow("sales", "ok")
	table.AddRow("marketing", "failed")
	table.Render()

	out := buf.String()
	for _, want := range []string{"DATASET", "STATUS", "sales", "marketing", "failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in table output %q", want, out)
		}
	}
}
