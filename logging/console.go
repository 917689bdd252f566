package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ConsoleWriter renders JSON log lines as a short human-readable line with a coloured level.
// Lines that are not log entries are passed through untouched.
type ConsoleWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleWriter wraps out with level colouring.
func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	return &ConsoleWriter{out: out}
}

func (w *ConsoleWriter) Write(p []byte) (int, error) {
	var entry Entry
	if err := json.Unmarshal(bytes.TrimSpace(p), &entry); err != nil || entry.Level == "" {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.out.Write(p)
	}

	var b strings.Builder
	b.WriteString(entry.Timestamp.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(colorLevel(entry.Level))
	if entry.Category != "" {
		b.WriteString(" [" + entry.Category + "]")
	}
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
		}
	}
	if entry.Error != "" {
		b.WriteString(" error=" + color.RedString("%q", entry.Error))
	}
	b.WriteByte('\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.out, b.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func colorLevel(level string) string {
	padded := fmt.Sprintf("%-5s", level)
	switch level {
	case "DEBUG":
		return color.MagentaString(padded)
	case "INFO":
		return color.BlueString(padded)
	case "WARN":
		return color.YellowString(padded)
	case "ERROR", "FATAL":
		return color.RedString(padded)
	default:
		return padded
	}
}
