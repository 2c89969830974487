// Package apperr carries service failures together with the HTTP status the
// gateway must answer with.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

type Kind int

const (
	KindStore Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "store"
	}
}

// Status maps a kind to its response code. Conflicts are answered with 400.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed service failure. Message is safe to show to clients; Err
// holds the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and message, so sentinel values work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func newErr(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Status: k.Status(), Message: msg, Err: cause}
}

func Validation(msg string) *Error      { return newErr(KindValidation, msg, nil) }
func Unauthenticated(msg string) *Error { return newErr(KindUnauthenticated, msg, nil) }
func Forbidden(msg string) *Error       { return newErr(KindForbidden, msg, nil) }
func NotFound(msg string) *Error        { return newErr(KindNotFound, msg, nil) }
func Conflict(msg string) *Error        { return newErr(KindConflict, msg, nil) }

// Store wraps a backing-store failure behind a generic client message.
func Store(msg string, cause error) *Error { return newErr(KindStore, msg, cause) }

// As extracts an *Error, treating anything else as a store failure.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Store("Internal server error", err)
}

// KindOf reports the kind of err, KindStore for foreign errors.
func KindOf(err error) Kind {
	return As(err).Kind
}

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into v, reading at most MaxBodyBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Write answers with the status embedded in err and {"error": message}.
// Store failures are logged with their cause; the cause never reaches the
// client.
func Write(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	e := As(err)
	if logger != nil {
		if e.Kind == KindStore {
			logger.Errorw(e.Message, "err", e.Err)
		} else {
			logger.Debugw("request rejected", "kind", e.Kind.String(), "msg", e.Message)
		}
	}
	WriteJSON(w, e.Status, map[string]string{"error": e.Message})
}
