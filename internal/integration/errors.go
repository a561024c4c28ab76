package integration

import (
	"errors"

	"github.com/abelzeko/riverstats/internal/extract"
)

// ErrNetwork covers request errors, timeouts and non-2xx responses
var ErrNetwork = errors.New("upstream request failed")

// ErrMalformedShape is returned when a payload lacks the expected structure
var ErrMalformedShape = extract.ErrMalformedShape

// Degraded reports whether err should degrade a whole source to "no data"
func Degraded(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrMalformedShape)
}
