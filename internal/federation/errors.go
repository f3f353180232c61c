package federation

import "errors"

var (
	ErrProviderMisconfigured = errors.New("provider is misconfigured")
	ErrNoAssertion           = errors.New("no identity assertion supplied")
)
