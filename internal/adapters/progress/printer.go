package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	units "github.com/docker/go-units"
	"github.com/muesli/termenv"
	"github.com/vito/progrock"
	"go.trai.ch/haul/internal/ui/output"
	"go.trai.ch/haul/internal/ui/style"
)

// DefaultStep is the number of bytes between two progress lines of one transfer.
const DefaultStep int64 = 16 << 20

var _ progrock.Writer = (*Printer)(nil)

// Printer renders progrock status updates as one line per step of every transfer.
type Printer struct {
	mu    sync.Mutex
	out   *termenv.Output
	step  int64
	names map[string]string
	bytes map[string]int64
	marks map[string]int64
	done  map[string]bool
}

// NewPrinter creates a Printer writing to w. A step below one byte means DefaultStep.
func NewPrinter(w io.Writer, step int64) *Printer {
	if step < 1 {
		step = DefaultStep
	}
	return &Printer{
		out:   output.New(w),
		step:  step,
		names: make(map[string]string),
		bytes: make(map[string]int64),
		marks: make(map[string]int64),
		done:  make(map[string]bool),
	}
}

// WriteStatus prints a line whenever a transfer crosses a step and once when it ends.
func (p *Printer) WriteStatus(u *progrock.StatusUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, v := range u.Vertexes {
		p.names[v.Id] = v.Name
	}

	for _, t := range u.Tasks {
		p.bytes[t.Vertex] = t.Current
		if t.Completed != nil {
			continue
		}
		if mark := t.Current / p.step; mark > p.marks[t.Vertex] {
			p.marks[t.Vertex] = mark
			p.print(style.Arrow, style.Slate, "downloading %s %s", p.names[t.Vertex], units.BytesSize(float64(t.Current)))
		}
	}

	for _, v := range u.Vertexes {
		if v.Completed == nil || p.done[v.Id] {
			continue
		}
		p.done[v.Id] = true
		if v.Error != nil {
			p.print(style.Cross, style.Red, "download of %s failed after %s", v.Name, units.BytesSize(float64(p.bytes[v.Id])))
			continue
		}
		p.print(style.Check, style.Green, "downloaded %s (%s)", v.Name, units.BytesSize(float64(p.bytes[v.Id])))
	}
	return nil
}

// Close does nothing; every line is written as soon as it is known.
func (p *Printer) Close() error { return nil }

func (p *Printer) print(icon string, color lipgloss.Color, format string, args ...any) {
	msg := icon + " " + fmt.Sprintf(format, args...)
	_, _ = p.out.WriteString(p.out.String(msg).Foreground(termenv.RGBColor(string(color))).String() + "\n")
}
