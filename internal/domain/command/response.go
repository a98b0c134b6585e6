package command

// ResponseCode is the result code reported to the ground for a command.
type ResponseCode uint8

// Response codes understood by the ground station.
const (
	ResponseSuccess ResponseCode = 0x01
	ResponseError   ResponseCode = 0x7F
)

// String returns a short name for the code.
func (c ResponseCode) String() string {
	switch c {
	case ResponseSuccess:
		return "success"
	case ResponseError:
		return "error"
	default:
		return "invalid"
	}
}

// CodeFor maps a callback result to the code reported downlink.
func CodeFor(err error) ResponseCode {
	if err != nil {
		return ResponseError
	}

	return ResponseSuccess
}

// MaxResponseDataSize is the largest payload a response frame carries.
const MaxResponseDataSize = 220

// Response describes the outcome of a command for the downlink.
type Response struct {
	// ID is the command that produced the response.
	ID ID
	// Code is the command result.
	Code ResponseCode
	// Data holds the response bytes written by the callback.
	Data []byte
}

// NewResponse builds a response owning a copy of data.
func NewResponse(id ID, err error, data []byte) Response {
	resp := Response{
		ID:   id,
		Code: CodeFor(err),
	}

	if len(data) > 0 {
		resp.Data = append([]byte(nil), data...)
	}

	return resp
}
