package control

import "github.com/pkg/errors"

// ErrInvalidConfiguration is returned by configuration calls (SetFrequency,
// SetPrescaler, ...) when the requested configuration is structurally
// invalid (non-positive frequency, negative divider). On this error the
// controller remains in its previous configuration.
var ErrInvalidConfiguration = errors.New("invalid configuration")
