package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"videotube-backend/internal/apperror"
)

// DecodeJSON strictly decodes the request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	return decode(r, dst, false)
}

// DecodeOptionalJSON is DecodeJSON but accepts an empty body.
func DecodeOptionalJSON(r *http.Request, dst any) error {
	return decode(r, dst, true)
}

func decode(r *http.Request, dst any, allowEmpty bool) error {
	if r.Body == nil {
		if allowEmpty {
			return nil
		}
		return apperror.Validation("invalid json body")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return apperror.Validation("request body too large")
		}
		return apperror.Validation("invalid json body")
	}

	return nil
}
