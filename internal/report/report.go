// Package report surfaces reportable interop errors to the user.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/mabhi256/jinterop/internal/interop"
)

// Kind selects how a reportable error reaches the user.
type Kind int

const (
	// Log only writes the error to the logger.
	Log Kind = iota
	// Dialog draws a box on stderr and blocks for Enter on a terminal.
	Dialog
	// Clipboard copies the report text for pasting into an issue.
	Clipboard
	// Exit logs the error and terminates the process.
	Exit
)

func (k Kind) String() string {
	switch k {
	case Log:
		return "log"
	case Dialog:
		return "dialog"
	case Clipboard:
		return "clipboard"
	case Exit:
		return "exit"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "log", "":
		return Log, nil
	case "dialog":
		return Dialog, nil
	case "clipboard":
		return Clipboard, nil
	case "exit":
		return Exit, nil
	default:
		return Log, fmt.Errorf("unknown reporter %q (want log, dialog, clipboard or exit)", s)
	}
}

func (k *Kind) Set(s string) error {
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k *Kind) Type() string {
	return "reporter"
}

func (k *Kind) UnmarshalText(text []byte) error {
	return k.Set(string(text))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Reporter delivers one reportable error.
type Reporter interface {
	Report(e *interop.Error)
}

type options struct {
	log    *slog.Logger
	in     io.Reader
	out    io.Writer
	isTTY  func() bool
	clip   func(string) error
	exit   func(int)
	newID  func() string
	styles lipgloss.Style
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithIO replaces stdin and stderr. The input is then treated as a terminal.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(o *options) {
		o.in = in
		o.out = out
		o.isTTY = func() bool { return true }
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(o *options) { o.clip = write }
}

// WithIncidentIDs replaces the random incident ID generator.
func WithIncidentIDs(next func() string) Option {
	return func(o *options) { o.newID = next }
}

// WithExit replaces os.Exit.
func WithExit(exit func(int)) Option {
	return func(o *options) { o.exit = exit }
}

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#FF5F87")).
	Padding(0, 1)

// New returns the reporter for kind.
func New(kind Kind, opts ...Option) Reporter {
	o := options{
		log:    slog.Default(),
		in:     os.Stdin,
		out:    os.Stderr,
		isTTY:  func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
		clip:   clipboard.WriteAll,
		exit:   os.Exit,
		newID:  uuid.NewString,
		styles: boxStyle,
	}
	for _, opt := range opts {
		opt(&o)
	}

	switch kind {
	case Dialog:
		return &dialog{o}
	case Clipboard:
		return &clipper{o}
	case Exit:
		return &exiter{o}
	default:
		return &logger{o}
	}
}

// Text renders the report body: message, then source location.
func Text(e *interop.Error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed\n\n", e.Op)
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	b.WriteString(msg)
	if e.Err != nil && e.Msg != "" && e.Err.Error() != e.Msg {
		fmt.Fprintf(&b, "\ncause: %v", e.Err)
	}
	if e.File != "" {
		fmt.Fprintf(&b, "\n\nFile: %s\nLine: %d", e.File, e.Line)
	}
	return b.String()
}

// incident logs e under a fresh ID and returns the report text carrying it.
func (o *options) incident(e *interop.Error) string {
	id := o.newID()
	o.log.Error("interop error", "incident", id, "op", e.Op, "msg", e.Msg, "file", e.File, "line", e.Line, "err", e.Err)
	return Text(e) + "\n\nIncident: " + id
}

type logger struct{ options }

func (r *logger) Report(e *interop.Error) {
	r.incident(e)
}

type dialog struct{ options }

func (r *dialog) Report(e *interop.Error) {
	fmt.Fprintln(r.out, r.styles.Render(r.incident(e)))

	if !r.isTTY() {
		return
	}
	fmt.Fprint(r.out, "Press Enter to continue...")
	_, _ = bufio.NewReader(r.in).ReadString('\n')
}

type clipper struct{ options }

func (r *clipper) Report(e *interop.Error) {
	if err := r.clip(r.incident(e)); err != nil {
		r.log.Warn("copy report to clipboard", "err", err)
		return
	}
	fmt.Fprintln(r.out, "Error report copied to clipboard")
}

type exiter struct{ options }

func (r *exiter) Report(e *interop.Error) {
	r.incident(e)
	r.exit(1)
}

// Handle reports err through r when it is an *interop.Error and says whether
// it did. Other errors are left to the caller.
func Handle(err error, r Reporter) bool {
	var ie *interop.Error
	if !errors.As(err, &ie) {
		return false
	}
	r.Report(ie)
	return true
}
