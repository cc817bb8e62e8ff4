package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file is not an error.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Severity is a glog severity level, ordered from least to most severe.
type Severity int

const (
	Unknown Severity = iota
	Info
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warning:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return ""
	}
}

// Entry is one parsed glog line:
//
//	Lmmdd hh:mm:ss.uuuuuu threadid file:line] msg
type Entry struct {
	Severity Severity
	Stamp    string // "mmdd hh:mm:ss.uuuuuu"
	Source   string // "file:line"
	Message  string
	Raw      string
}

var severityLetters = map[byte]Severity{
	'I': Info,
	'W': Warning,
	'E': Error,
	'F': Fatal,
}

// Parse splits a glog line into its parts. Lines that do not follow the glog
// header, such as the file preamble or continuation lines, come back with
// Unknown severity and the whole line as Message.
func Parse(line string) Entry {
	e := Entry{Raw: line, Message: line}
	if len(line) < 2 {
		return e
	}
	sev, ok := severityLetters[line[0]]
	if !ok || line[1] < '0' || line[1] > '9' {
		return e
	}
	header, msg, found := strings.Cut(line, "] ")
	if !found {
		return e
	}
	fields := strings.Fields(header[1:])
	if len(fields) < 4 {
		return e
	}
	e.Severity = sev
	e.Stamp = fields[0] + " " + fields[1]
	e.Source = fields[3]
	e.Message = msg
	return e
}

// Filter parses lines and keeps entries at or above atLeast. Unparsed lines are
// kept only when atLeast is Unknown.
func Filter(lines []string, atLeast Severity) []Entry {
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		e := Parse(line)
		if e.Severity < atLeast {
			continue
		}
		out = append(out, e)
	}
	return out
}
