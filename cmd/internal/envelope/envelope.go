// Package envelope renders every API response as {"data": <payload>}.
package envelope

import (
	"encoding/json"
	"net/http"
	"strconv"

	"wardrobe/cmd/internal/fault"
)

// fallbackBody is used only if even the error message cannot be encoded.
var fallbackBody = []byte(`{"data":"Failed to serialize object to json"}`)

// Response is a rendered (status, body) pair. Body is always valid JSON.
type Response struct {
	Status int
	Body   []byte
}

type wrapper struct {
	Data any `json:"data"`
}

// Build encodes payload inside the envelope.
// If payload cannot be encoded the response degrades to a 500 carrying the encoder message.
func Build(status int, payload any) Response {
	body, err := json.Marshal(wrapper{Data: payload})
	if err != nil {
		return serializationFailure(err)
	}
	return Response{Status: status, Body: body}
}

// FromError renders err with its taxonomy status and public message.
func FromError(err error) Response {
	return Build(fault.Status(err), fault.Message(err))
}

func serializationFailure(err error) Response {
	body, merr := json.Marshal(wrapper{Data: "Failed to serialize object to json: " + err.Error()})
	if merr != nil {
		body = fallbackBody
	}
	return Response{Status: http.StatusInternalServerError, Body: body}
}

// WriteTo writes the response verbatim with an application/json content type.
func (r Response) WriteTo(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}

// Write builds and writes a success envelope.
func Write(w http.ResponseWriter, status int, payload any) {
	Build(status, payload).WriteTo(w)
}

// WriteError builds and writes an error envelope.
func WriteError(w http.ResponseWriter, err error) {
	FromError(err).WriteTo(w)
}
