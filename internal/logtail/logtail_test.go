package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	// Create a temporary log file
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	// Write 10 lines of content
	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.INFO"), 10)
	if err != nil || got != nil {
		t.Fatalf("Read(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Entry
	}{
		{
			name:     "empty line",
			input:    "",
			expected: Entry{},
		},
		{
			name:  "info",
			input: "I0320 12:00:01.123456   4242 channel.go:164] push: connected",
			expected: Entry{
				Severity: Info,
				Stamp:    "0320 12:00:01.123456",
				Source:   "channel.go:164",
				Message:  "push: connected",
			},
		},
		{
			name:  "warning with brackets in message",
			input: "W0320 12:00:03.000001 77 controller.go:250] mutation 01J: checkout_book book-ddia rolled back: [rfid] failed",
			expected: Entry{
				Severity: Warning,
				Stamp:    "0320 12:00:03.000001",
				Source:   "controller.go:250",
				Message:  "mutation 01J: checkout_book book-ddia rolled back: [rfid] failed",
			},
		},
		{
			name:  "glog preamble",
			input: "Log file created at: 2025/03/20 12:00:00",
			expected: Entry{
				Message: "Log file created at: 2025/03/20 12:00:00",
			},
		},
		{
			name:  "capitalised word is not a header",
			input: "Running on machine: campus-01",
			expected: Entry{
				Message: "Running on machine: campus-01",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.expected.Raw = tt.input
			if got := Parse(tt.input); got != tt.expected {
				t.Errorf("Parse() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	input := []string{
		"Log file created at: 2025/03/20 12:00:00",
		"I0320 12:00:01.000000 1 app.go:10] starting",
		"W0320 12:00:02.000000 1 persist.go:40] no saved state",
		"E0320 12:00:03.000000 1 app.go:90] metrics server: address in use",
	}

	if got := Filter(input, Unknown); len(got) != 4 {
		t.Fatalf("Filter(Unknown) kept %d lines, want 4", len(got))
	}
	got := Filter(input, Warning)
	if len(got) != 2 || got[0].Severity != Warning || got[1].Severity != Error {
		t.Fatalf("Filter(Warning) = %+v", got)
	}
	if Error.String() != "ERROR" || Unknown.String() != "" {
		t.Fatalf("unexpected severity labels")
	}
}
