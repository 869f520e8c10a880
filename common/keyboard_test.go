package common

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitKeyChord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		keys string
		want []string
	}{
		{
			name: "empty string",
			keys: "",
			want: []string{""},
		},
		{
			name: "no separator",
			keys: "KeyA",
			want: []string{"KeyA"},
		},
		{
			name: "chord",
			keys: "Control+Shift+KeyA",
			want: []string{"Control", "Shift", "KeyA"},
		},
		{
			name: "do not split on single +",
			keys: "+",
			want: []string{"+"},
		},
		{
			name: "split ++ to + and ''",
			keys: "++",
			want: []string{"+", ""},
		},
		{
			name: "split +++ to + and +",
			keys: "+++",
			want: []string{"+", "+"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, splitKeyChord(tt.keys))
		})
	}
}

func TestKeyboardModifiers(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	k := NewKeyboard(ctx, newFakeSession(ctx, testTargetID))

	require.NoError(t, k.Down("Shift"))
	assert.Equal(t, ModifierKeyShift, k.modifiers)

	require.NoError(t, k.Down("Control"))
	assert.Equal(t, ModifierKeyShift|ModifierKeyControl, k.modifiers)

	require.NoError(t, k.Up("Shift"))
	assert.Equal(t, ModifierKeyControl, k.modifiers)

	require.NoError(t, k.Up("Control"))
	assert.Zero(t, k.modifiers)
}

func TestKeyboardInvalidKey(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	k := NewKeyboard(ctx, newFakeSession(ctx, testTargetID))

	require.Error(t, k.Down("NoSuchKey"))
	require.Error(t, k.Up("NoSuchKey"))
}

func TestKeyboardPressDispatchesDownAndUp(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	k := NewKeyboard(ctx, session)

	require.NoError(t, k.Press("a", KeyboardOptions{}))

	assert.Equal(t, []string{
		input.CommandDispatchKeyEvent,
		input.CommandDispatchKeyEvent,
	}, session.calls())
	assert.Empty(t, k.pressedKeys, "press must release the key")
}

func TestKeyboardComboPress(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	k := NewKeyboard(ctx, session)

	require.NoError(t, k.Press("Control+c", KeyboardOptions{}))

	// Two keys down, two keys up.
	assert.Len(t, session.calls(), 4)
	assert.Zero(t, k.modifiers, "combo press must restore modifiers")
}

func TestKeyboardTypeFallsBackToInsertText(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	k := NewKeyboard(ctx, session)

	// "ü" has no key definition in the us layout, so it cannot be
	// produced by key events and gets inserted directly.
	require.NoError(t, k.Type("aü", KeyboardOptions{}))

	calls := session.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, input.CommandDispatchKeyEvent, calls[0])
	assert.Equal(t, input.CommandDispatchKeyEvent, calls[1])
	assert.Equal(t, input.CommandInsertText, calls[2])
}
