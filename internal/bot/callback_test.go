package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		act  action
	}{
		{"plain", action{kind: actAddTask}},
		{"with id", action{kind: actDoneTask, id: 42, hasID: true}},
		{"with value", action{kind: actRepeatType, value: "weekly"}},
		{"filter all", action{kind: actListFilter, value: "all"}},
		{"filter category", action{kind: actListFilter, id: 7, hasID: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, ok := decodeAction(encodeAction(tt.act))
			require.True(t, ok)
			assert.Equal(t, tt.act, decoded)
		})
	}
}

func TestDecodeActionRejectsUnknownData(t *testing.T) {
	for _, data := range []string{"", "nope", "nope:5", "42", ":"} {
		_, ok := decodeAction(data)
		assert.False(t, ok, "data %q must not decode", data)
	}
}

func TestDecodeActionPayloadTyping(t *testing.T) {
	act, ok := decodeAction("done:17")
	require.True(t, ok)
	assert.Equal(t, actDoneTask, act.kind)
	assert.True(t, act.hasID)
	assert.Equal(t, uint(17), act.id)
	assert.Empty(t, act.value)

	act, ok = decodeAction("repeat:interval")
	require.True(t, ok)
	assert.Equal(t, actRepeatType, act.kind)
	assert.False(t, act.hasID)
	assert.Equal(t, "interval", act.value)
}

func TestActionHelpers(t *testing.T) {
	assert.Equal(t, "add", plainAction(actAddTask))
	assert.Equal(t, "done:9", idAction(actDoneTask, 9))
	assert.Equal(t, "day:mon", valueAction(actToggleDay, "mon"))
}

func TestEveryActionKindHasAName(t *testing.T) {
	for kind := actAddTask; kind <= actCatConfirmDelete; kind++ {
		name, ok := actionNames[kind]
		require.True(t, ok, "kind %d has no name", kind)

		decoded, decodedOK := decodeAction(name)
		require.True(t, decodedOK, "name %q does not decode", name)
		assert.Equal(t, kind, decoded.kind)
	}
}
