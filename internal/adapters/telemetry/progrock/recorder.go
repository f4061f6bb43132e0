// Package progrock provides the Progrock implementation of the tracer
// adapter.
package progrock

import (
	"context"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/udpbd-vexfat/internal/core/ports"
)

// Recorder implements ports.Tracer on top of a progrock tape.
type Recorder struct {
	w   progrock.Writer
	rec *progrock.Recorder
}

// New creates a new Recorder with a default tape.
func New() *Recorder {
	return NewRecorder(progrock.NewTape())
}

// NewRecorder creates a new Recorder with the given writer.
func NewRecorder(w progrock.Writer) *Recorder {
	return &Recorder{
		w:   w,
		rec: progrock.NewRecorder(w),
	}
}

// Start creates a vertex on the tape for the named unit of work.
func (r *Recorder) Start(ctx context.Context, name string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	d := digest.FromString(name)
	v := r.rec.Vertex(d, name)
	return ctx, &Span{vertex: v}
}

// EmitPlan records the ordered stage list as an already-completed
// vertex, so the tape shows the full plan before any stage runs.
func (r *Recorder) EmitPlan(_ context.Context, stageNames []string) {
	name := "plan: " + strings.Join(stageNames, " -> ")
	v := r.rec.Vertex(digest.FromString(name), name)
	v.Done(nil)
}

// Close flushes and closes the recording session.
func (r *Recorder) Close() error {
	if c, ok := r.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Span implements ports.Span wrapping *progrock.VertexRecorder.
type Span struct {
	vertex *progrock.VertexRecorder
	err    error
}

// Write forwards command output to the vertex's stdout stream.
func (s *Span) Write(p []byte) (n int, err error) {
	return s.vertex.Stdout().Write(p)
}

// End completes the vertex, failing it if an error was recorded.
func (s *Span) End() {
	s.vertex.Done(s.err)
}

// RecordError marks the span as failed once it ends.
func (s *Span) RecordError(err error) {
	s.err = err
}

// SetAttribute renders the attribute into the vertex's output stream.
func (s *Span) SetAttribute(key string, value any) {
	_, _ = fmt.Fprintf(s.vertex.Stdout(), "%s=%v\n", key, value)
}

var _ ports.Tracer = (*Recorder)(nil)
