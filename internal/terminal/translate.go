package terminal

import (
	"errors"

	"rimecmd/internal/engine"
	"rimecmd/internal/wire"
)

// ErrStopClient is returned by Translate for ETX/EOT: original_source's
// input_translator.rs leaves these "unreachable"/"unimplemented" because
// terminal_mode.rs intercepts them before translation; here Translate
// reports the intent directly so callers don't need a second switch over
// Input.Kind to special-case it.
var ErrStopClient = errors.New("terminal: input requests stop_client")

// Keysym is the engine-facing {keycode, mask} pair a translated Input
// produces.
type Keysym struct {
	Keycode uint32
	Mask    uint32
}

// Translate maps a parsed Input token to the engine's keysym vocabulary.
// Special cases from spec.md §4.4:
//   - Nul is bound to Ctrl-` (the schema-menu toggle), because several
//     common terminals send NUL for that combination.
//   - Del (0x7f) maps to BackSpace.
//   - Cr maps to Return.
//   - Etx/Eot are not translated; Translate returns ErrStopClient.
//   - Characters or tokens with no mapping return *wire.UnsupportedInputError.
func Translate(in Input) (Keysym, error) {
	switch in.Kind {
	case Nul:
		code, _ := engine.CharacterKeycode('`')
		return Keysym{Keycode: code, Mask: engine.ModControl}, nil
	case Del, Bs:
		code, _ := engine.NamedKeycode("BackSpace")
		return Keysym{Keycode: code}, nil
	case Cr, Lf:
		code, _ := engine.NamedKeycode("Return")
		return Keysym{Keycode: code}, nil
	case Ht:
		code, _ := engine.NamedKeycode("Tab")
		return Keysym{Keycode: code}, nil
	case Up:
		code, _ := engine.NamedKeycode("Up")
		return Keysym{Keycode: code}, nil
	case Down:
		code, _ := engine.NamedKeycode("Down")
		return Keysym{Keycode: code}, nil
	case Left:
		code, _ := engine.NamedKeycode("Left")
		return Keysym{Keycode: code}, nil
	case Right:
		code, _ := engine.NamedKeycode("Right")
		return Keysym{Keycode: code}, nil
	case Home:
		code, _ := engine.NamedKeycode("Home")
		return Keysym{Keycode: code}, nil
	case End:
		code, _ := engine.NamedKeycode("End")
		return Keysym{Keycode: code}, nil
	case Insert:
		code, _ := engine.NamedKeycode("Insert")
		return Keysym{Keycode: code}, nil
	case Delete:
		code, _ := engine.NamedKeycode("Delete")
		return Keysym{Keycode: code}, nil
	case KeypadHome:
		code, _ := engine.NamedKeycode("KP_Home")
		return Keysym{Keycode: code}, nil
	case KeypadEnd:
		code, _ := engine.NamedKeycode("KP_End")
		return Keysym{Keycode: code}, nil
	case PageUp:
		code, _ := engine.NamedKeycode("Page_Up")
		return Keysym{Keycode: code}, nil
	case PageDown:
		code, _ := engine.NamedKeycode("Page_Down")
		return Keysym{Keycode: code}, nil
	case Char:
		code, ok := engine.CharacterKeycode(in.Char)
		if !ok {
			return Keysym{}, &wire.UnsupportedInputError{Input: string(in.Char)}
		}
		return Keysym{Keycode: code}, nil
	case Etx, Eot:
		return Keysym{}, ErrStopClient
	default:
		return Keysym{}, &wire.UnsupportedInputError{Input: "unrecognized input token"}
	}
}
