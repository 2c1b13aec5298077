package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mohamedS2020/lifetag/internal/lifetag/types"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads.  Profile creation is the largest request.
const maxRequestBody = 64 << 10

var errEmptyBody = errors.New("empty body")

// decodeBody reads a JSON or protobuf Struct body into v.  Unknown fields
// are rejected.
func decodeBody(r *http.Request, v any) error {
	if isProtobuf(r) {
		return decodeStructInto(r, v)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// respond writes v as JSON, or as a protobuf Struct when the client
// accepts application/x-protobuf.
func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if wantsProtobuf(r) {
		msg, err := toStruct(v)
		if err != nil {
			http.Error(w, "proto encode error", http.StatusInternalServerError)
			return
		}
		writeProto(w, status, msg)
		return
	}
	writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	respond(w, r, status, types.ErrorResponse{Error: code, Message: msg})
}
