package msgs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypedKinds(t *testing.T) {
	tests := []struct {
		msg     SerializableMessage
		command bool
		reply   bool
		event   bool
	}{
		{&StatusQuery{}, true, false, false},
		{&Status{}, true, true, false},
		{&Move{}, true, false, false},
		{&Samples{}, true, true, false},
		{&CommandOK{}, true, true, false},
		{&CommandErr{}, true, true, false},
		{&StatusEvent{}, false, false, true},
	}
	for _, test := range tests {
		typed, err := TypedFrom(test.msg, 5)
		require.NoError(t, err)
		name := TypeName(test.msg)
		require.Equal(t, test.command, typed.IsCommand(), name)
		require.Equal(t, test.reply, typed.IsReply(), name)
		require.Equal(t, test.event, typed.IsEvent(), name)
	}
}

func TestTypedDecode(t *testing.T) {
	typed, err := TypedFrom(&Download{Location: 7, Count: 3}, 42)
	require.NoError(t, err)
	data, err := typed.Encode()
	require.NoError(t, err)

	decoded, err := DecodeTyped(data)
	require.NoError(t, err)
	require.Equal(t, uint32(42), decoded.Sequence)
	msg, err := decoded.Decode()
	require.NoError(t, err)
	require.Equal(t, &Download{Location: 7, Count: 3}, msg)

	decoded.TypeId = GroupTVC | 0x7ff
	_, err = decoded.Decode()
	require.Equal(t, &ErrUnknownType{TypeID: GroupTVC | 0x7ff}, err)

	_, err = TypedFrom(nil, 0)
	require.Equal(t, ErrNotSerializable, err)
}

func TestCommandErr(t *testing.T) {
	cerr := CommandErrorf("busy %d", 3)
	require.Equal(t, "busy 3", cerr.Error())
	require.True(t, NewCommandErr(cerr) == cerr)
	require.Equal(t, "boom", NewCommandErr(errors.New("boom")).Message)
}
