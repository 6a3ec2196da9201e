// Package tracelog formats the simulator's advisory per-retirement
// trace line. It wraps log/slog with a handler that owns its output
// file and formats lines itself, in the style of
// rcornwell-S370/util/logger's LogHandler, rather than delegating to
// slog's built-in text/JSON handlers.
package tracelog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Handler is a slog.Handler that writes one line per record to out,
// with no level prefix or timestamp: trace lines are already dense,
// high-volume, and meant to be diffed against a reference run.
type Handler struct {
	out io.Writer
	mu  *sync.Mutex
}

// NewHandler wraps out. Pass io.Discard to get a handler that drops
// every record. cmd/rv32sim creates a handler only when --log names a
// file.
func NewHandler(out io.Writer) *Handler {
	return &Handler{out: out, mu: &sync.Mutex{}}
}

func (h *Handler) Enabled(context.Context, slog.Level) bool { return true }

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	line := r.Message
	r.Attrs(func(a slog.Attr) bool {
		line += " " + a.Value.String()
		return true
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.out, line)
	return err
}

func (h *Handler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *Handler) WithGroup(string) slog.Handler      { return h }

// Tracer formats the per-retirement trace line of SPEC_FULL.md §6.6:
// "<cycle> <pc> <inst> <rd> <= 0x<val>", plus memory access
// annotations.
type Tracer struct {
	log *slog.Logger
}

// New builds a Tracer writing through handler.
func New(handler slog.Handler) *Tracer {
	return &Tracer{log: slog.New(handler)}
}

// abiRegNames are the calling-convention names printed in trace lines
// instead of bare x-numbers, taken from the regname[32] table in
// original_source/tools/rvsim.c.
var abiRegNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0(fp)", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegName returns the ABI name of architectural register idx, e.g. "a0"
// for x10. Indices outside 0-31 return "?".
func RegName(idx uint32) string {
	if int(idx) >= len(abiRegNames) {
		return "?"
	}
	return abiRegNames[idx]
}

// Retire logs one retired instruction's register writeback.
func (t *Tracer) Retire(cycle uint64, pc, inst uint32, rd string, val uint32) {
	t.log.Info(fmt.Sprintf("%-10d 0x%08x 0x%08x", cycle, pc, inst),
		slog.String("writeback", fmt.Sprintf("%s <= 0x%08x", rd, val)))
}

// MemRead logs a data-memory load.
func (t *Tracer) MemRead(cycle uint64, addr uint32) {
	t.log.Info(fmt.Sprintf("%-10d read", cycle), slog.String("addr", fmt.Sprintf("0x%08x", addr)))
}

// MemWrite logs a data-memory store.
func (t *Tracer) MemWrite(cycle uint64, addr, val uint32) {
	t.log.Info(fmt.Sprintf("%-10d write", cycle),
		slog.String("addr", fmt.Sprintf("0x%08x", addr)),
		slog.String("val", fmt.Sprintf("0x%08x", val)))
}
