package engine

// Keysym and modifier-mask tables the engine expects on process_key, in the
// X11 convention original_source/src/rime_api/mod.rs's test exercises
// directly (e.g. keycode 0x6D for 'm', 32 for space): printable ASCII
// characters use their own code point as the keysym; everything else is a
// named keysym from the table below. original_source's own
// input_translator.rs builds its maps from a sibling key_mappings module
// that was not part of the retrieved snapshot, so these tables are built
// straight from the X11 keysymdef values spec.md's scenarios exercise
// (BackSpace 0xff08, Return 0xff0d, grave 0x60/96).

// KeyNameToKeycode holds the non-printable keysyms the terminal driver's
// input translator needs.
var KeyNameToKeycode = map[string]uint32{
	"BackSpace": 0xff08,
	"Tab":       0xff09,
	"Return":    0xff0d,
	"Escape":    0xff1b,
	"Home":      0xff50,
	"Left":      0xff51,
	"Up":        0xff52,
	"Right":     0xff53,
	"Down":      0xff54,
	"Page_Up":   0xff55,
	"Page_Down": 0xff56,
	"End":       0xff57,
	"KP_Home":   0xff95,
	"KP_End":    0xff9c,
	"Insert":    0xff63,
	"Delete":    0xffff,
}

// Modifier mask bits, matching X11's ShiftMask/LockMask/ControlMask/Mod1Mask
// convention: scenario 4 in spec.md (grave + Control) expects mask 1<<2.
const (
	ModShift   uint32 = 1 << 0
	ModLock    uint32 = 1 << 1
	ModControl uint32 = 1 << 2
	ModMod1    uint32 = 1 << 3 // Alt/Meta on most layouts
)

// CharacterKeycode returns the keysym for a printable character: printable
// ASCII keysyms equal the character's own code point.
func CharacterKeycode(r rune) (uint32, bool) {
	if r >= 0x20 && r <= 0x7e {
		return uint32(r), true
	}
	return 0, false
}

// NamedKeycode looks up a non-printable key by name (e.g. "BackSpace").
func NamedKeycode(name string) (uint32, bool) {
	code, ok := KeyNameToKeycode[name]
	return code, ok
}
