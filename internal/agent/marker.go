package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Marker is the persisted per-file processing record. Its on-disk format is
// a consumer contract: key=value lines followed by the raw reader output
// between OUTPUT_BEGIN and OUTPUT_END.
type Marker struct {
	Status    string
	Timestamp string
	Reader    string
	File      string
	OutputDir string
	GroupSize int
	Message   string
	Output    string
}

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// MarkerPath is the marker location for a source file: same name with the
// extension replaced by .log.
func MarkerPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".log"
}

// WriteMarker persists the marker, overwriting any previous one.
func WriteMarker(path string, m Marker) error {
	if m.Timestamp == "" {
		m.Timestamp = time.Now().Format("2006-01-02 15:04:05")
	}
	output := m.Output
	if strings.TrimSpace(output) == "" {
		output = "(sin salida)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "STATUS=%s\n", m.Status)
	fmt.Fprintf(&b, "TIMESTAMP=%s\n", m.Timestamp)
	fmt.Fprintf(&b, "READER=%s\n", m.Reader)
	fmt.Fprintf(&b, "FILE=%s\n", m.File)
	if m.OutputDir != "" {
		fmt.Fprintf(&b, "OUTPUT_DIR=%s\n", m.OutputDir)
	}
	if m.GroupSize > 0 {
		fmt.Fprintf(&b, "GROUP_SIZE=%d\n", m.GroupSize)
	}
	fmt.Fprintf(&b, "MESSAGE=%s\n", m.Message)
	b.WriteString("OUTPUT_BEGIN\n")
	b.WriteString(strings.TrimRight(output, "\n"))
	b.WriteString("\nOUTPUT_END\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("WriteMarker: %w", err)
	}
	return nil
}

// ReadMarker loads a marker file. ok is false when no marker exists or the
// file is unreadable; a present but malformed marker still counts as
// processed (whatever wrote it got that far).
func ReadMarker(path string) (Marker, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Marker{}, false
	}

	var m Marker
	inOutput := false
	var out []string
	for _, ln := range strings.Split(string(data), "\n") {
		switch {
		case ln == "OUTPUT_BEGIN":
			inOutput = true
			continue
		case ln == "OUTPUT_END":
			inOutput = false
			continue
		case inOutput:
			out = append(out, ln)
			continue
		}
		key, val, ok := strings.Cut(ln, "=")
		if !ok {
			continue
		}
		switch key {
		case "STATUS":
			m.Status = val
		case "TIMESTAMP":
			m.Timestamp = val
		case "READER":
			m.Reader = val
		case "FILE":
			m.File = val
		case "OUTPUT_DIR":
			m.OutputDir = val
		case "GROUP_SIZE":
			if n, err := strconv.Atoi(val); err == nil {
				m.GroupSize = n
			}
		case "MESSAGE":
			m.Message = val
		}
	}
	m.Output = strings.Join(out, "\n")
	return m, true
}
