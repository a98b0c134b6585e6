package command

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame layouts.
//
//	command:  [id u8][flags u8][timestamp u32 BE][n u8][params n]
//	response: [id u8][code u8][n u8][data n]
const (
	messageHeaderSize  = 7
	responseHeaderSize = 3

	flagTimeTagged = 1 << 0
)

var (
	// ErrShortFrame is returned when a frame ends before its declared payload.
	ErrShortFrame = errors.New("frame too short")
	// ErrInvalidResponseCode is returned for response codes the ground does not know.
	ErrInvalidResponseCode = errors.New("invalid response code")
	// ErrDataTooLarge is returned for responses above MaxResponseDataSize.
	ErrDataTooLarge = errors.New("response data too large")
)

// MarshalBinary encodes the message as a command frame.
func (m *Message) MarshalBinary() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, messageHeaderSize, messageHeaderSize+len(m.Params))
	buf[0] = byte(m.ID)

	if m.IsTimeTagged {
		buf[1] |= flagTimeTagged
	}

	binary.BigEndian.PutUint32(buf[2:6], m.Timestamp)
	buf[6] = byte(len(m.Params))

	return append(buf, m.Params...), nil
}

// UnmarshalBinary decodes a command frame. Trailing bytes are ignored.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) < messageHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}

	n := int(data[6])
	if len(data) < messageHeaderSize+n {
		return fmt.Errorf("%w: want %d params, have %d", ErrShortFrame, n, len(data)-messageHeaderSize)
	}

	decoded := Message{
		ID:           ID(data[0]),
		IsTimeTagged: data[1]&flagTimeTagged != 0,
		Timestamp:    binary.BigEndian.Uint32(data[2:6]),
	}

	if n > 0 {
		decoded.Params = append([]byte(nil), data[messageHeaderSize:messageHeaderSize+n]...)
	}

	if err := decoded.Validate(); err != nil {
		return err
	}

	*m = decoded

	return nil
}

// MarshalBinary encodes the response as a response frame.
func (r *Response) MarshalBinary() ([]byte, error) {
	if !r.ID.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, uint8(r.ID))
	}

	if len(r.Data) > MaxResponseDataSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, len(r.Data))
	}

	buf := make([]byte, 0, responseHeaderSize+len(r.Data))
	buf = append(buf, byte(r.ID), byte(r.Code), byte(len(r.Data)))

	return append(buf, r.Data...), nil
}

// UnmarshalBinary decodes a response frame.
func (r *Response) UnmarshalBinary(data []byte) error {
	if len(data) < responseHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}

	id := ID(data[0])
	if !id.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownCommand, data[0])
	}

	code := ResponseCode(data[1])
	if code != ResponseSuccess && code != ResponseError {
		return fmt.Errorf("%w: %#x", ErrInvalidResponseCode, data[1])
	}

	n := int(data[2])
	if len(data) < responseHeaderSize+n {
		return fmt.Errorf("%w: want %d data bytes, have %d", ErrShortFrame, n, len(data)-responseHeaderSize)
	}

	*r = Response{ID: id, Code: code}
	if n > 0 {
		r.Data = append([]byte(nil), data[responseHeaderSize:responseHeaderSize+n]...)
	}

	return nil
}

// AppendBatch appends the frames of msgs followed by an end-of-frame marker.
func AppendBatch(buf []byte, msgs ...Message) ([]byte, error) {
	for i := range msgs {
		frame, err := msgs[i].MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode command %d: %w", i, err)
		}

		buf = append(buf, frame...)
	}

	return append(buf, byte(EndOfFrame)), nil
}

// DecodeBatch splits an uplink payload into commands. Decoding stops at an
// end-of-frame marker or at the end of data.
func DecodeBatch(data []byte) ([]Message, error) {
	var msgs []Message

	for len(data) > 0 && ID(data[0]) != EndOfFrame {
		var m Message
		if err := m.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("decode command %d: %w", len(msgs), err)
		}

		data = data[messageHeaderSize+len(m.Params):]
		msgs = append(msgs, m)
	}

	return msgs, nil
}
