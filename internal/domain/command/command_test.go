package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMessageClone verifies that Clone does not share the parameter block.
func TestMessageClone(t *testing.T) {
	t.Parallel()

	m := &Message{
		ID:           RTCSync,
		Timestamp:    1_700_000_000,
		IsTimeTagged: true,
		Params:       []byte{1, 2, 3, 4},
	}

	c := m.Clone()
	require.Equal(t, *m, c)

	c.Params[0] = 9
	require.Equal(t, byte(1), m.Params[0])
}

// TestParseID resolves names and rejects unknown ones.
func TestParseID(t *testing.T) {
	t.Parallel()

	id, err := ParseID("ping")
	require.NoError(t, err)
	require.Equal(t, Ping, id)
	require.Equal(t, "ping", id.String())

	_, err = ParseID("self_destruct")
	require.ErrorIs(t, err, ErrUnknownCommand)

	require.Equal(t, "unknown(200)", ID(200).String())
}

// TestMessageFrame checks the command frame layout and its decoding.
func TestMessageFrame(t *testing.T) {
	t.Parallel()

	m := &Message{
		ID:           DownlinkLogsNextPass,
		Timestamp:    0x01020304,
		IsTimeTagged: true,
		Params:       []byte{2},
	}

	frame, err := m.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{byte(DownlinkLogsNextPass), 0x01, 0x01, 0x02, 0x03, 0x04, 0x01, 0x02}, frame)

	var decoded Message
	require.NoError(t, decoded.UnmarshalBinary(frame))
	require.Equal(t, *m, decoded)

	require.ErrorIs(t, decoded.UnmarshalBinary(frame[:5]), ErrShortFrame)
	require.ErrorIs(t, decoded.UnmarshalBinary(frame[:7]), ErrShortFrame)

	frame[0] = 0xEE
	require.ErrorIs(t, decoded.UnmarshalBinary(frame), ErrUnknownCommand)

	tooLarge := &Message{ID: Ping, Params: make([]byte, MaxParamsSize+1)}
	_, err = tooLarge.MarshalBinary()
	require.ErrorIs(t, err, ErrParamsTooLarge)
}

// TestResponseFrame checks response encoding and validation of the header.
func TestResponseFrame(t *testing.T) {
	t.Parallel()

	r := NewResponse(ExecOBCReset, nil, []byte{0xAA, 0xBB})
	require.Equal(t, ResponseSuccess, r.Code)

	frame, err := r.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{byte(ExecOBCReset), 0x01, 0x02, 0xAA, 0xBB}, frame)

	var decoded Response
	require.NoError(t, decoded.UnmarshalBinary(frame))
	require.Equal(t, r, decoded)

	frame[1] = 0x42
	require.ErrorIs(t, decoded.UnmarshalBinary(frame), ErrInvalidResponseCode)

	bad := Response{ID: numIDs}
	_, err = bad.MarshalBinary()
	require.ErrorIs(t, err, ErrUnknownCommand)

	huge := Response{ID: Ping, Data: make([]byte, MaxResponseDataSize+1)}
	_, err = huge.MarshalBinary()
	require.ErrorIs(t, err, ErrDataTooLarge)
}

// TestNewResponse_ErrorCode maps a failing callback to the error code.
func TestNewResponse_ErrorCode(t *testing.T) {
	t.Parallel()

	r := NewResponse(Ping, errors.New("boom"), nil)
	require.Equal(t, ResponseError, r.Code)
	require.Nil(t, r.Data)
	require.Equal(t, "error", r.Code.String())
}

// TestBatch splits frames at the end-of-frame marker.
func TestBatch(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		{ID: Ping},
		{ID: RTCSync, Params: []byte{0x65, 0x53, 0xF1, 0x00}},
		{ID: DownlinkTelem, IsTimeTagged: true, Timestamp: 1700000100},
	}

	payload, err := AppendBatch(nil, msgs...)
	require.NoError(t, err)
	require.Equal(t, byte(EndOfFrame), payload[len(payload)-1])

	// Bytes after the marker are padding.
	payload = append(payload, 0xAA, 0xBB)

	got, err := DecodeBatch(payload)
	require.NoError(t, err)
	require.Equal(t, msgs, got)

	_, err = DecodeBatch([]byte{byte(Ping), 0, 0, 0, 0, 0, 5, 1})
	require.ErrorIs(t, err, ErrShortFrame)

	empty, err := DecodeBatch(nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}
