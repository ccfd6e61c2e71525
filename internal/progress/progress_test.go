package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want []string
	}{
		{
			name: "unknown total",
			ev:   Event{Contig: "chr1", State: model.StateStreaming, Bytes: 2048, Total: -1, Kept: 3},
			want: []string{"chr1", "streaming", "2.048kB", "kept 3"},
		},
		{
			name: "with total",
			ev:   Event{Contig: "chr2", State: model.StateStreaming, Bytes: 500, Total: 1000},
			want: []string{"500B / 1kB (50%)"},
		},
		{
			name: "failed",
			ev:   Event{Contig: "chrX", State: model.StateFailed, Err: model.KindNetworkError},
			want: []string{"failed", "[network_error]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := FormatLine(tt.ev)
			for _, w := range tt.want {
				assert.Contains(t, line, w)
			}
		})
	}
}

// A bytes.Buffer is not a terminal, so transitions are logged instead of drawn.
func TestReporter_LogsTransitionsWhenNotTTY(t *testing.T) {
	var out, logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := NewReporter(&out, logger, time.Millisecond)
	r.Start()
	r.Send(Event{Contig: "chr1", State: model.StatePending, Total: -1})
	r.Send(Event{Contig: "chr1", State: model.StateFetching, Total: -1})
	r.Send(Event{Contig: "chr1", State: model.StateFetching, Total: -1})
	r.Send(Event{Contig: "chr1", State: model.StateFailed, Err: model.KindChecksumMismatch})
	r.Stop()
	r.Stop()

	text := logs.String()
	assert.Empty(t, out.String())
	assert.Equal(t, 3, strings.Count(text, "contig progress"))
	assert.Contains(t, text, "state=fetching")
	assert.Contains(t, text, "level=WARN")
	assert.Contains(t, text, "error=checksum_mismatch")
}

func TestReporter_DrawsFrames(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, nil, time.Millisecond)
	r.tty = true
	r.Start()
	chr2 := Event{Contig: "chr2", State: model.StateDone, Bytes: 10, Total: 10}
	chr1 := Event{Contig: "chr1", State: model.StateFetching, Total: -1}
	r.Send(chr2)
	r.Send(chr1)
	r.Stop()

	// The last frame lists contigs in name order.
	text := out.String()
	assert.True(t, strings.HasSuffix(text, FormatLine(chr2)+"\n"), text)
	assert.Contains(t, text, FormatLine(chr1)+"\n")
}

func TestDiscard(t *testing.T) {
	var s Sink = Discard{}
	s.Send(Event{Contig: "chr1"})
}
