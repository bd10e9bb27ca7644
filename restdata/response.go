// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"reflect"

	"github.com/ugorji/go/codec"
)

// jsonHandle returns a codec handle that decodes JSON objects as
// map[string]interface{}.
func jsonHandle() *codec.JsonHandle {
	json := &codec.JsonHandle{}
	json.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return json
}

// Response is the envelope of every API response.
type Response struct {
	// Status is 0 for success and 1 for failure.
	Status int

	// ErrorCode and ErrorMessage are set only on failures.
	ErrorCode    ErrorCode
	ErrorMessage string

	// Name is the key the representation is sent under, such as
	// "images" or "image".  If empty, no representation is sent.
	Name string

	// Rep is the representation: a Rep, a []Rep, or a list of
	// strings for tag listings.
	Rep interface{}

	// Paging is set on paged collection responses.
	Paging *Paging
}

// SuccessEnvelope builds a successful response.
func SuccessEnvelope(name string, rep interface{}) Response {
	return Response{Status: 0, Name: name, Rep: rep}
}

// ErrorEnvelope builds a failure response from an error.  Errors
// that are not APIError become UNKNOWN_ERROR.
func ErrorEnvelope(err error) Response {
	apiErr, ok := err.(APIError)
	if !ok {
		apiErr = APIError{Code: UnknownError, Message: err.Error()}
	}
	return Response{
		Status:       1,
		ErrorCode:    apiErr.Code,
		ErrorMessage: apiErr.Error(),
	}
}

// Err returns the error a failed response describes, or nil for a
// successful response.
func (r Response) Err() error {
	if r.Status == 0 {
		return nil
	}
	return APIError{Code: r.ErrorCode, Message: r.ErrorMessage}
}

// Map flattens the response to the map that is sent on the wire.
func (r Response) Map() map[string]interface{} {
	out := map[string]interface{}{"status": r.Status}
	if r.Status != 0 {
		out["error_code"] = int(r.ErrorCode)
		if r.ErrorMessage != "" {
			out["error_message"] = r.ErrorMessage
		}
	}
	if r.Name != "" && r.Rep != nil {
		out[r.Name] = r.Rep
	}
	if r.Paging != nil {
		out["paging"] = r.Paging
	}
	return out
}

// MarshalJSON returns the wire form of a response.
func (r Response) MarshalJSON() (out []byte, err error) {
	json := &codec.JsonHandle{}
	encoder := codec.NewEncoderBytes(&out, json)
	err = encoder.Encode(r.Map())
	return
}

// UnmarshalJSON decodes the wire form of a response.  The one key
// that is not part of the envelope becomes Name.
func (r *Response) UnmarshalJSON(in []byte) error {
	var raw map[string]interface{}
	json := jsonHandle()
	decoder := codec.NewDecoderBytes(in, json)
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	status, ok := toInt(raw["status"])
	if !ok {
		return errors.New("response has no status")
	}
	*r = Response{Status: status}
	for key, value := range raw {
		switch key {
		case "status":
		case "error_code":
			code, _ := toInt(value)
			r.ErrorCode = ErrorCode(code)
		case "error_message":
			r.ErrorMessage, _ = value.(string)
		case "paging":
			var paging Paging
			if err := reencode(value, &paging); err != nil {
				return err
			}
			r.Paging = &paging
		default:
			r.Name = key
			r.Rep = value
		}
	}
	return nil
}

// toInt converts a decoded JSON number to an int.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// reencode converts a generic decoded value into a typed one by a
// round trip through JSON.
func reencode(in interface{}, out interface{}) error {
	var b []byte
	json := jsonHandle()
	if err := codec.NewEncoderBytes(&b, json).Encode(in); err != nil {
		return err
	}
	return codec.NewDecoderBytes(b, json).Decode(out)
}
