package terminal

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"

	"rimecmd/internal/wire"
)

// NotATerminalError is returned by Open when /dev/tty cannot be opened,
// matching original_source's NotATerminal variant.
type NotATerminalError struct{ Err error }

func (e *NotATerminalError) Error() string { return fmt.Sprintf("terminal: not a terminal: %v", e.Err) }
func (e *NotATerminalError) Unwrap() error { return e.Err }

// Driver owns /dev/tty, the termios snapshot, the input parser and its
// reordering buffer, and the ANSI renderer. Grounded on
// original_source/src/terminal_interface/mod.rs's TerminalInterface, with
// raw-mode entry/exit following the teacher's cmdAttach idiom
// (golang.org/x/term.MakeRaw/Restore with a deferred restore) in place of
// libc::cfmakeraw/tcsetattr. Unlike cmdAttach, there is no PTY slave to
// resize, so no SIGWINCH/term.GetSize forwarding is wired in here: rimecmd
// is a single local tty, not a remote attach to another process's PTY.
type Driver struct {
	tty       *os.File
	origState *term.State
	w         *bufio.Writer
	parser    Parser

	// buffered holds non-CPR tokens observed while waiting for a cursor
	// position report; they are replayed, in order, ahead of any fresh
	// read. This is the only reordering spec.md §4.4 allows.
	buffered []Input
}

// Open opens /dev/tty, snapshots termios and enters raw mode.
func Open() (*Driver, error) {
	f, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, &NotATerminalError{Err: err}
	}

	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("terminal: enter raw mode: %w", err)
	}

	return &Driver{
		tty:       f,
		origState: state,
		w:         bufio.NewWriter(f),
	}, nil
}

// Close restores termios unconditionally and closes /dev/tty. It is safe,
// and required, to call on every exit path of the owning mode (spec.md
// §4.4's RAII-style guarantee).
func (d *Driver) Close() error {
	restoreErr := term.Restore(int(d.tty.Fd()), d.origState)
	closeErr := d.tty.Close()
	if restoreErr != nil {
		return restoreErr
	}
	return closeErr
}

// Fd exposes the tty's file descriptor for poller registration.
func (d *Driver) Fd() int { return int(d.tty.Fd()) }

// ReadInput returns the next Input token, preferring anything buffered by a
// prior GetCursorPosition wait before reading fresh bytes.
func (d *Driver) ReadInput() (Input, error) {
	if len(d.buffered) > 0 {
		tok := d.buffered[0]
		d.buffered = d.buffered[1:]
		return tok, nil
	}
	return d.readToken()
}

// ReadOne implements poller.Source[Input] so the client's multiplexer can
// fuse tty input with stdin/server-reply sources (spec.md §4.3/§4.7).
func (d *Driver) ReadOne() (Input, error) { return d.ReadInput() }

func (d *Driver) readToken() (Input, error) {
	buf := make([]byte, 1)
	for {
		n, err := d.tty.Read(buf)
		if err != nil {
			return Input{}, err
		}
		if n == 0 {
			continue
		}
		if tok, ok := d.parser.ConsumeByte(buf[0]); ok {
			return tok, nil
		}
	}
}

// GetCursorPosition writes the CPR query (ESC[6n) and blocks until the
// terminal answers, buffering any other token observed in the meantime.
func (d *Driver) GetCursorPosition() (row, col int, err error) {
	if err := d.flushWrite("\x1b[6n"); err != nil {
		return 0, 0, err
	}
	for {
		tok, err := d.readToken()
		if err != nil {
			return 0, 0, err
		}
		if tok.Kind == CursorPositionReport {
			return tok.Row, tok.Col, nil
		}
		d.buffered = append(d.buffered, tok)
	}
}

// SetCursorPosition moves the cursor to a 1-based (row, col).
func (d *Driver) SetCursorPosition(row, col int) error {
	return d.flushWrite(fmt.Sprintf("\x1b[%d;%dH", row, col))
}

func (d *Driver) flushWrite(s string) error {
	if _, err := d.w.WriteString(s); err != nil {
		return err
	}
	return d.w.Flush()
}

const (
	sgrReverse = "\x1b[7m"
	sgrFaint   = "\x1b[2m"
	sgrReset   = "\x1b[0m"
	eraseRight = "\x1b[0K"
	eraseBelow = "\x1b[0J"
)

// DrawComposition renders "> <preedit>" on the prompt line: faint outside
// [sel_start, sel_end), normal inside it. When the byte index under the
// writer equals cursor_pos, the live cursor column is sampled via CPR and
// returned as the final placement target.
func (d *Driver) DrawComposition(comp wire.Composition) (cursorCol int, err error) {
	if _, err := d.w.WriteString("\r> "); err != nil {
		return 0, err
	}

	inSelection := false
	bytePos := 0
	data := []byte(comp.Preedit)

	writeAt := func(i int) error {
		if i == comp.CursorPos {
			if err := d.w.Flush(); err != nil {
				return err
			}
			_, c, err := d.GetCursorPosition()
			if err != nil {
				return err
			}
			cursorCol = c
		}
		return nil
	}

	for i := 0; i <= len(data); i++ {
		if err := writeAt(i); err != nil {
			return 0, err
		}
		if i == len(data) {
			break
		}
		wantSelection := bytePos >= comp.SelStart && bytePos < comp.SelEnd
		if wantSelection != inSelection {
			if wantSelection {
				if _, err := d.w.WriteString(sgrReset); err != nil {
					return 0, err
				}
			} else {
				if _, err := d.w.WriteString(sgrFaint); err != nil {
					return 0, err
				}
			}
			inSelection = wantSelection
		} else if i == 0 {
			if inSelection {
				d.w.WriteString(sgrReset)
			} else {
				d.w.WriteString(sgrFaint)
			}
		}
		if err := d.w.WriteByte(data[i]); err != nil {
			return 0, err
		}
		bytePos++
	}

	if _, err := d.w.WriteString(sgrReset + eraseRight); err != nil {
		return 0, err
	}
	return cursorCol, d.w.Flush()
}

// DrawMenu renders the candidate list below the prompt and returns the row
// the menu started on (sampled via CPR after drawing, minus its height).
func (d *Driver) DrawMenu(menu wire.Menu) (topRow int, err error) {
	for i, cand := range menu.Candidates {
		if _, err := d.w.WriteString("\r\n"); err != nil {
			return 0, err
		}
		if i == menu.HighlightedCandidateIdx {
			d.w.WriteString(sgrReverse)
		}
		d.w.WriteString(cand.Text)
		if i == menu.HighlightedCandidateIdx {
			d.w.WriteString(sgrReset)
		}
		if cand.Comment != "" {
			d.w.WriteString(" " + sgrFaint + cand.Comment + sgrReset)
		}
		if _, err := d.w.WriteString(eraseRight); err != nil {
			return 0, err
		}
	}
	if _, err := d.w.WriteString(eraseBelow); err != nil {
		return 0, err
	}
	if err := d.w.Flush(); err != nil {
		return 0, err
	}

	if len(menu.Candidates) == 0 {
		row, _, err := d.GetCursorPosition()
		return row, err
	}
	row, _, err := d.GetCursorPosition()
	if err != nil {
		return 0, err
	}
	return row - len(menu.Candidates), nil
}

// UpdateUI redraws the composition and menu and places the cursor, per
// spec.md §4.4: carriage return, draw composition, draw menu, set cursor
// position, flush.
func (d *Driver) UpdateUI(comp wire.Composition, menu wire.Menu) error {
	if _, err := d.w.WriteString("\r"); err != nil {
		return err
	}
	cursorCol, err := d.DrawComposition(comp)
	if err != nil {
		return err
	}
	menuTopRow, err := d.DrawMenu(menu)
	if err != nil {
		return err
	}
	if err := d.SetCursorPosition(menuTopRow, cursorCol); err != nil {
		return err
	}
	return d.w.Flush()
}

// SetupUI emits the initial prompt without touching termios state.
func (d *Driver) SetupUI() error {
	return d.flushWrite("\r> " + eraseRight)
}

// RemoveUI erases the prompt and anything drawn below it, used around
// out-of-band writes (e.g. a committed string in continue mode).
func (d *Driver) RemoveUI() error {
	return d.flushWrite("\r" + eraseRight + eraseBelow)
}
