package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// Flusher is a byte sink with explicit flush.
type Flusher interface {
	io.Writer
	Flush() error
}

type nopFlusher struct{ io.Writer }

func (nopFlusher) Flush() error { return nil }

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithQuestionTags wraps question payloads in <question></question> tags.
func WithQuestionTags(enabled bool) WriterOption {
	return func(w *Writer) {
		w.questionTags = enabled
	}
}

// Writer is the framed writer over the outbound half of the stream. It tracks the open
// region so regions never nest and a turn never ends with a region left open.
// All methods are safe for concurrent use; each call is atomic with respect to the others.
type Writer struct {
	mu           sync.Mutex
	out          Flusher
	enc          Encoder
	open         Region
	turns        int
	questionTags bool
}

// NewWriter creates a framed writer. If out has no Flush method, flushing is a no-op.
func NewWriter(out io.Writer, enc Encoder, opts ...WriterOption) *Writer {
	f, ok := out.(Flusher)
	if !ok {
		f = nopFlusher{out}
	}
	w := &Writer{out: f, enc: enc}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ready writes the readiness banner and flushes.
func (w *Writer) Ready(banner string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Ready(w.out, banner); err != nil {
		return transportErr("write banner", err)
	}
	return w.flush()
}

// BeginRegion writes the start marker of r and flushes.
func (w *Writer) BeginRegion(r Region) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.begin(r)
}

// EndRegion writes the end marker of r and flushes. r must be the open region.
func (w *Writer) EndRegion(r Region) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.end(r)
}

// WriteChunk writes text inside the open region and flushes. Chunk boundaries carry no meaning.
func (w *Writer) WriteChunk(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.open == "" {
		return ErrNoRegion
	}
	return w.text(text)
}

// EndTurn writes the termination marker and flushes. It fails if a region is still open.
func (w *Writer) EndTurn() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.open != "" {
		return fmt.Errorf("%w: %s", ErrRegionOpen, w.open)
	}
	if err := w.enc.EndTurn(w.out); err != nil {
		return transportErr("write end of turn", err)
	}
	w.turns++
	return w.flush()
}

// Emit writes a complete region carrying text. An open output region is closed first and
// reopened after, so the caller sees flat regions.
func (w *Writer) Emit(r Region, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	suspended, err := w.suspend()
	if err != nil {
		return err
	}
	if err := w.begin(r); err != nil {
		return err
	}
	if err := w.text(text); err != nil {
		return err
	}
	if err := w.end(r); err != nil {
		return err
	}
	return w.resume(suspended)
}

// Question writes a complete question region holding the JSON payload. No region may be open.
func (w *Writer) Question(r Region, q domain.QuestionPayload) error {
	body, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode question: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	text := string(body)
	if w.questionTags {
		text = QuestionTagOpen + text + QuestionTagClose
	}
	if err := w.begin(r); err != nil {
		return err
	}
	if err := w.text(text + "\n"); err != nil {
		return err
	}
	return w.end(r)
}

// Suspend closes the open region, if any, and returns it so Resume can reopen it.
func (w *Writer) Suspend() (Region, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.suspend()
}

// Resume reopens a region returned by Suspend. An empty region is a no-op.
func (w *Writer) Resume(r Region) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resume(r)
}

// CloseOpen closes whatever region is open. Used to terminate a failed turn cleanly.
func (w *Writer) CloseOpen() error {
	_, err := w.Suspend()
	return err
}

// Open returns the currently open region, or "".
func (w *Writer) Open() Region {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Turns returns how many termination markers were written.
func (w *Writer) Turns() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.turns
}

func (w *Writer) begin(r Region) error {
	if w.open != "" {
		return fmt.Errorf("%w: %s", ErrRegionOpen, w.open)
	}
	if err := w.enc.Begin(w.out, r); err != nil {
		return transportErr("write begin marker", err)
	}
	w.open = r
	return w.flush()
}

func (w *Writer) end(r Region) error {
	if w.open != r {
		return fmt.Errorf("%w: open=%q close=%q", ErrRegionMismatch, w.open, r)
	}
	if err := w.enc.End(w.out, r); err != nil {
		return transportErr("write end marker", err)
	}
	w.open = ""
	return w.flush()
}

func (w *Writer) text(s string) error {
	if err := w.enc.Text(w.out, s); err != nil {
		return transportErr("write payload", err)
	}
	return w.flush()
}

func (w *Writer) suspend() (Region, error) {
	r := w.open
	if r == "" {
		return "", nil
	}
	return r, w.end(r)
}

func (w *Writer) resume(r Region) error {
	if r == "" {
		return nil
	}
	return w.begin(r)
}

func (w *Writer) flush() error {
	if err := w.out.Flush(); err != nil {
		return transportErr("flush", err)
	}
	return nil
}

func transportErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransport, err)
}
