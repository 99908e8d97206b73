package dashboard

import (
	"strings"
	"sync"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/events"
)

const maxLogLines = 1000

// LogBuffer keeps the most recent log lines for the log pane. It is an
// io.Writer so it can sit behind the application logger; it must never
// log itself.
type LogBuffer struct {
	mu      sync.RWMutex
	lines   []string
	partial string
	event   *events.ChannelEvent[string]
}

func NewLogBuffer() *LogBuffer {
	return &LogBuffer{
		lines: make([]string, 0, maxLogLines),
		event: events.NewChannelEvent[string](false),
	}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	text := b.partial + string(p)
	parts := strings.Split(text, "\n")
	b.partial = parts[len(parts)-1]
	complete := parts[:len(parts)-1]
	b.lines = append(b.lines, complete...)
	if len(b.lines) > maxLogLines {
		b.lines = b.lines[len(b.lines)-maxLogLines:]
	}
	b.mu.Unlock()

	for _, line := range complete {
		b.event.Notify(line)
	}
	return len(p), nil
}

// Tail returns the last n complete lines.
func (b *LogBuffer) Tail(n int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 {
		return []string{}
	}
	start := max(len(b.lines)-n, 0)
	out := make([]string, len(b.lines)-start)
	copy(out, b.lines[start:])
	return out
}

// Listen registers a channel to receive each new line.
// Returns a deregistration function.
func (b *LogBuffer) Listen(ch chan<- string) func() {
	return b.event.Listen(ch)
}
