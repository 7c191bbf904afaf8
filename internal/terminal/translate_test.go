package terminal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rimecmd/internal/engine"
	"rimecmd/internal/wire"
)

func TestTranslate_NulBindsToControlGrave(t *testing.T) {
	ks, err := Translate(Input{Kind: Nul})
	require.NoError(t, err)
	grave, _ := engine.CharacterKeycode('`')
	assert.Equal(t, grave, ks.Keycode)
	assert.Equal(t, engine.ModControl, ks.Mask)
}

func TestTranslate_DelMapsToBackSpace(t *testing.T) {
	ks, err := Translate(Input{Kind: Del})
	require.NoError(t, err)
	bs, _ := engine.NamedKeycode("BackSpace")
	assert.Equal(t, bs, ks.Keycode)
}

func TestTranslate_CrMapsToReturn(t *testing.T) {
	ks, err := Translate(Input{Kind: Cr})
	require.NoError(t, err)
	ret, _ := engine.NamedKeycode("Return")
	assert.Equal(t, ret, ks.Keycode)
}

func TestTranslate_EtxEotSurfaceStopClient(t *testing.T) {
	_, err := Translate(Input{Kind: Etx})
	assert.True(t, errors.Is(err, ErrStopClient))

	_, err = Translate(Input{Kind: Eot})
	assert.True(t, errors.Is(err, ErrStopClient))
}

func TestTranslate_PrintableCharacter(t *testing.T) {
	ks, err := Translate(Input{Kind: Char, Char: 'm'})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x6d), ks.Keycode)
}

func TestTranslate_UnmappedCharacterIsUnsupported(t *testing.T) {
	_, err := Translate(Input{Kind: Char, Char: '中'})
	require.Error(t, err)
	var unsupported *wire.UnsupportedInputError
	require.ErrorAs(t, err, &unsupported)
}

func TestTranslate_GraveCharacterMatchesMenuScenarioKeycode(t *testing.T) {
	// spec.md §8 scenario 4 sends '`' (96) with mask 1<<2 (Control). A plain
	// '`' keypress translates to keycode 96; the Control variant arrives as
	// NUL and is covered by TestTranslate_NulBindsToControlGrave.
	ks, err := Translate(Input{Kind: Char, Char: '`'})
	require.NoError(t, err)
	assert.Equal(t, uint32(96), ks.Keycode)
}
