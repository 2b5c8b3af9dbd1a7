/*
Package req provides request parsing helpers for the REST handlers.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"pulsechat/internal/pkg/errs"
)

// MaxBodySize caps request bodies; all REST payloads are small JSON documents.
const MaxBodySize int64 = 1 << 20 // 1 MB

// BindJSON decodes the request body into dst, enforcing the JSON content
// type, the body size cap, unknown-field rejection, and single-document
// bodies.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
