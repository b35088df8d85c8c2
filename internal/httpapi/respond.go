// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// envelope is the JSON shape of every response.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, message string, extra envelope) {
	body := envelope{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{"success": false, "message": message})
}

// errMalformedBody marks requests whose body is not a JSON object.
var errMalformedBody = errors.New("malformed request body")

// decode reads a JSON object into dst. An empty body decodes to the zero value.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return oops.Code("HTTP_MALFORMED_BODY").Wrap(errors.Join(errMalformedBody, err))
	}
	return nil
}
