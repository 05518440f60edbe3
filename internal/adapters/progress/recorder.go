// Package progress reports download progress through a progrock recorder.
package progress

import (
	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/haul/internal/core/ports"
)

var _ ports.Progress = (*Recorder)(nil)

// Recorder implements ports.Progress with one progrock vertex per transfer.
type Recorder struct {
	rec *progrock.Recorder
}

// NewRecorder creates a Recorder writing status updates to w.
func NewRecorder(w progrock.Writer) *Recorder {
	return &Recorder{rec: progrock.NewRecorder(w)}
}

// Track starts a vertex named after the destination with a byte counting task.
func (r *Recorder) Track(name string) ports.Transfer {
	v := r.rec.Vertex(digest.FromString(name), name)
	return &Transfer{vertex: v, task: v.ProgressTask(0, "download")}
}

// Transfer implements ports.Transfer on a progrock vertex.
type Transfer struct {
	vertex  *progrock.VertexRecorder
	task    *progrock.TaskRecorder
	written int64
}

// Write counts p and reports the running total. It never fails.
func (t *Transfer) Write(p []byte) (int, error) {
	t.written += int64(len(p))
	t.task.Current(t.written)
	return len(p), nil
}

// Done completes the task and the vertex.
func (t *Transfer) Done(err error) {
	t.task.Done(err)
	t.vertex.Done(err)
}

// Discard is the Progress used when nobody watches the terminal.
type Discard struct{}

// Track returns a Transfer that ignores everything.
func (Discard) Track(string) ports.Transfer { return discardTransfer{} }

type discardTransfer struct{}

func (discardTransfer) Write(p []byte) (int, error) { return len(p), nil }

func (discardTransfer) Done(error) {}
