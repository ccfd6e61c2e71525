// Package progress renders per-contig download progress.
//
// Workers never share counters: each one sends Events on a channel and a
// single Reporter goroutine owns all display state. On a terminal the
// reporter redraws one line per contig in place; otherwise it logs state
// transitions through slog so redirected output stays readable.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/moby/term"
	"github.com/morikuni/aec"

	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

// Event is one progress update from a worker.
type Event struct {
	Contig string
	State  model.State

	// Bytes is the number of raw bytes downloaded so far.
	Bytes int64

	// Total is the advertised size, or -1 when unknown.
	Total int64

	// Kept is the number of records written so far.
	Kept int64

	// Err is the failure kind once State is failed.
	Err model.ErrorKind
}

// Sink receives events. Use Discard when nothing should be shown.
type Sink interface {
	Send(Event)
}

// Reporter consumes events on its own goroutine.
type Reporter struct {
	out      io.Writer
	logger   *slog.Logger
	tty      bool
	interval time.Duration

	events chan Event
	done   chan struct{}
	once   sync.Once

	rows  map[string]Event
	drawn int
}

// NewReporter creates a reporter writing to out. When out is a terminal the
// display is redrawn at most once per interval; otherwise transitions are
// logged to logger.
func NewReporter(out io.Writer, logger *slog.Logger, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	_, isTTY := term.GetFdInfo(out)
	return &Reporter{
		out:      out,
		logger:   logger,
		tty:      isTTY,
		interval: interval,
		events:   make(chan Event, 256),
		done:     make(chan struct{}),
		rows:     make(map[string]Event),
	}
}

// Start launches the render loop.
func (r *Reporter) Start() {
	go r.loop()
}

// Send queues an event. Byte-count updates are dropped rather than block a
// worker when the reporter falls behind; state changes always get through.
func (r *Reporter) Send(ev Event) {
	if ev.State == model.StateStreaming {
		select {
		case r.events <- ev:
		default:
		}
		return
	}
	r.events <- ev
}

// Stop drains pending events, draws the final state and waits for the loop
// to exit. It is safe to call more than once.
func (r *Reporter) Stop() {
	r.once.Do(func() {
		close(r.events)
		<-r.done
	})
}

func (r *Reporter) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case ev, ok := <-r.events:
			if !ok {
				if r.tty {
					r.draw()
				}
				return
			}
			prev, seen := r.rows[ev.Contig]
			r.rows[ev.Contig] = ev
			dirty = true
			if !r.tty && (!seen || prev.State != ev.State) {
				r.log(ev)
			}
		case <-ticker.C:
			if r.tty && dirty {
				r.draw()
				dirty = false
			}
		}
	}
}

func (r *Reporter) log(ev Event) {
	if r.logger == nil {
		return
	}
	attrs := []any{"contig", ev.Contig, "state", ev.State.String()}
	if ev.Bytes > 0 {
		attrs = append(attrs, "downloaded", units.HumanSize(float64(ev.Bytes)))
	}
	if ev.Err != model.KindNone {
		r.logger.Warn("contig progress", append(attrs, "error", ev.Err.String())...)
		return
	}
	r.logger.Debug("contig progress", attrs...)
}

// draw repaints every row, moving the cursor back over the previous frame.
func (r *Reporter) draw() {
	names := make([]string, 0, len(r.rows))
	for name := range r.rows {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	if r.drawn > 0 {
		sb.WriteString(aec.Up(uint(r.drawn)).String())
	}
	for _, name := range names {
		sb.WriteString(aec.EraseLine(aec.EraseModes.All).String())
		sb.WriteString(FormatLine(r.rows[name]))
		sb.WriteByte('\n')
	}
	r.drawn = len(names)
	_, _ = io.WriteString(r.out, sb.String())
}

// FormatLine renders one contig row, e.g.
//
//	chr1        streaming   1.2GB / 4.5GB (26%)  kept 1042
func FormatLine(ev Event) string {
	size := units.HumanSize(float64(ev.Bytes))
	if ev.Total > 0 {
		pct := float64(ev.Bytes) * 100 / float64(ev.Total)
		size = fmt.Sprintf("%s / %s (%.0f%%)", size, units.HumanSize(float64(ev.Total)), pct)
	}
	line := fmt.Sprintf("%-10s  %-10s  %s  kept %d", ev.Contig, ev.State, size, ev.Kept)
	if ev.Err != model.KindNone {
		line += "  [" + ev.Err.String() + "]"
	}
	return line
}

// Discard is a Sink that drops every event.
type Discard struct{}

// Send implements Sink.
func (Discard) Send(Event) {}
