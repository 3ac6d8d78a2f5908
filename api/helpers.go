package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/types"
)

// maxBodySize bounds the size of the JSON request bodies.
const maxBodySize = 1 << 20

// httpWriteJSON helper function allows to write a JSON response with the
// 200 OK status.
func httpWriteJSON(w http.ResponseWriter, data any) {
	httpWriteJSONStatus(w, http.StatusOK, data)
}

// httpWriteJSONStatus writes a JSON response with the given status.
func httpWriteJSONStatus(w http.ResponseWriter, status int, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "status", status, "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// httpWriteNoContent writes an empty 204 response.
func httpWriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody decodes the JSON request body into v. On failure it writes the
// error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		if errors.Is(err, types.ErrInvalidProofShape) {
			ErrInvalidProofShape.WithErr(err).Write(w)
			return false
		}
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return false
	}
	return true
}

// proofFromRequest checks that both the proof and its public signals were
// provided.
func proofFromRequest(req *ProofRequest) error {
	if req.Proof == nil || len(req.PublicSignals) == 0 {
		return fmt.Errorf("missing proof or publicSignals")
	}
	return nil
}
