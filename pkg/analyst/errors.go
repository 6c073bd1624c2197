package analyst

import "errors"

// Error taxonomy for the model-facing services. Callers branch with
// errors.Is; HTTP handlers map these onto 400 / 502 / 422.
var (
	// ErrValidation marks malformed or missing request fields, rejected
	// before any external call.
	ErrValidation = errors.New("invalid request")

	// ErrUpstream marks an unreachable or failing model service.
	ErrUpstream = errors.New("model service failed")

	// ErrParse marks model output that could not be interpreted.
	ErrParse = errors.New("could not parse model output")
)
