package service

import "errors"

// Sentinel errors returned by the account service. Specific failures wrap one
// of these with fmt.Errorf("%w: ...") so callers can classify with errors.Is
// and still show the detailed message.
var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("could not validate credentials")
	ErrNotFound           = errors.New("not found")
	ErrInvalidToken       = errors.New("invalid token")
)

// Message returns the client-facing message of a wrapped service error, that is
// the text after the sentinel prefix, or the whole message if there is none.
func Message(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrValidation, ErrConflict, ErrInvalidCredentials, ErrUnauthenticated, ErrNotFound, ErrInvalidToken} {
		prefix := sentinel.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
