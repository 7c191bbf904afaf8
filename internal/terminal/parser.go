// Package terminal implements the byte-level input parser, the
// input-to-keysym translator, and the raw-mode ANSI rendering driver
// described in spec.md §4.4, grounded on
// original_source/src/terminal_interface/{mod.rs,input_parser.rs,input_translator.rs}.
package terminal

// Kind enumerates the Input token variants original_source's Input enum
// produces.
type Kind int

const (
	Up Kind = iota
	Down
	Left
	Right
	Home
	End
	KeypadHome
	Insert
	Delete
	KeypadEnd
	PageUp
	PageDown
	Char
	Cr
	Del
	Nul
	Etx
	Eot
	Bs
	Ht
	Lf
	CursorPositionReport
)

// Input is one decoded token out of the raw byte stream.
type Input struct {
	Kind Kind
	// Char is valid when Kind == Char.
	Char rune
	// Row/Col are valid when Kind == CursorPositionReport (1-based, per
	// ESC[row;colR).
	Row int
	Col int
}

type parserState int

const (
	stateStart parserState = iota
	stateEsc
	stateCsi
	stateCsiNum
	stateCsiSemi
	stateUtf8
)

// Parser is a byte-by-byte state machine producing Input tokens. It never
// returns a fatal error for unrecognized input: per spec.md §4.4, any
// unrecognized sequence silently resets to Start.
type Parser struct {
	state parserState

	num1 []byte
	num2 []byte

	utf8Remaining int
	utf8Value     uint32
}

func (p *Parser) reset() {
	p.state = stateStart
	p.num1 = p.num1[:0]
	p.num2 = p.num2[:0]
	p.utf8Remaining = 0
	p.utf8Value = 0
}

// ConsumeByte feeds one byte to the parser. It returns (tok, true) when a
// complete token was produced, or (Input{}, false) while more bytes are
// needed. There is no error return: malformed sequences reset silently.
func (p *Parser) ConsumeByte(b byte) (Input, bool) {
	switch p.state {
	case stateStart:
		return p.consumeStart(b)
	case stateEsc:
		return p.consumeEsc(b)
	case stateCsi:
		return p.consumeCsi(b)
	case stateCsiNum:
		return p.consumeCsiNum(b)
	case stateCsiSemi:
		return p.consumeCsiSemi(b)
	case stateUtf8:
		return p.consumeUtf8(b)
	default:
		p.reset()
		return Input{}, false
	}
}

func (p *Parser) consumeStart(b byte) (Input, bool) {
	switch b {
	case 0x00:
		return Input{Kind: Nul}, true
	case 0x03:
		return Input{Kind: Etx}, true
	case 0x04:
		return Input{Kind: Eot}, true
	case 0x08:
		return Input{Kind: Bs}, true
	case 0x09:
		return Input{Kind: Ht}, true
	case 0x0a:
		return Input{Kind: Lf}, true
	case 0x0d:
		return Input{Kind: Cr}, true
	case 0x7f:
		return Input{Kind: Del}, true
	case 0x1b:
		p.state = stateEsc
		return Input{}, false
	}

	switch {
	case b < 0x20:
		// other ASCII control byte: unrecognized, reset silently.
		return Input{}, false
	case b < 0x80:
		return Input{Kind: Char, Char: rune(b)}, true
	case b&0xE0 == 0xC0:
		p.startUtf8(1, uint32(b&0x1F))
		return Input{}, false
	case b&0xF0 == 0xE0:
		p.startUtf8(2, uint32(b&0x0F))
		return Input{}, false
	case b&0xF8 == 0xF0:
		p.startUtf8(3, uint32(b&0x07))
		return Input{}, false
	default:
		return Input{}, false
	}
}

func (p *Parser) startUtf8(continuations int, leadBits uint32) {
	p.state = stateUtf8
	p.utf8Remaining = continuations
	p.utf8Value = leadBits
}

func (p *Parser) consumeUtf8(b byte) (Input, bool) {
	if b&0xC0 != 0x80 {
		// Not a continuation: drop the partial sequence and parse b afresh.
		p.reset()
		return p.consumeStart(b)
	}
	p.utf8Value = (p.utf8Value << 6) | uint32(b&0x3F)
	p.utf8Remaining--
	if p.utf8Remaining > 0 {
		return Input{}, false
	}
	r := rune(p.utf8Value)
	p.reset()
	return Input{Kind: Char, Char: r}, true
}

func (p *Parser) consumeEsc(b byte) (Input, bool) {
	if b == '[' {
		p.state = stateCsi
		return Input{}, false
	}
	p.reset()
	return Input{}, false
}

func (p *Parser) consumeCsi(b byte) (Input, bool) {
	switch b {
	case 'A':
		p.reset()
		return Input{Kind: Up}, true
	case 'B':
		p.reset()
		return Input{Kind: Down}, true
	case 'C':
		p.reset()
		return Input{Kind: Right}, true
	case 'D':
		p.reset()
		return Input{Kind: Left}, true
	case 'F':
		p.reset()
		return Input{Kind: End}, true
	case 'H':
		p.reset()
		return Input{Kind: Home}, true
	}
	if b >= '0' && b <= '9' {
		p.num1 = append(p.num1, b)
		p.state = stateCsiNum
		return Input{}, false
	}
	p.reset()
	return Input{}, false
}

func (p *Parser) consumeCsiNum(b byte) (Input, bool) {
	if b >= '0' && b <= '9' {
		p.num1 = append(p.num1, b)
		return Input{}, false
	}
	if b == ';' {
		p.state = stateCsiSemi
		return Input{}, false
	}
	if b == '~' {
		n := parseDigits(p.num1)
		p.reset()
		switch n {
		case 1:
			return Input{Kind: KeypadHome}, true
		case 2:
			return Input{Kind: Insert}, true
		case 3:
			return Input{Kind: Delete}, true
		case 4:
			return Input{Kind: KeypadEnd}, true
		case 5:
			return Input{Kind: PageUp}, true
		case 6:
			return Input{Kind: PageDown}, true
		default:
			return Input{}, false
		}
	}
	p.reset()
	return Input{}, false
}

func (p *Parser) consumeCsiSemi(b byte) (Input, bool) {
	if b >= '0' && b <= '9' {
		p.num2 = append(p.num2, b)
		return Input{}, false
	}
	if b == 'R' {
		row := parseDigits(p.num1)
		col := parseDigits(p.num2)
		p.reset()
		return Input{Kind: CursorPositionReport, Row: row, Col: col}, true
	}
	p.reset()
	return Input{}, false
}

func parseDigits(digits []byte) int {
	n := 0
	for _, d := range digits {
		n = n*10 + int(d-'0')
	}
	return n
}
