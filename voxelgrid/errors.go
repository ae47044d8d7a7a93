package voxelgrid

import "errors"

// ErrConfigurationInvalid wraps every construction-time configuration
// error: non-odd RenderAreaSize, duplicate GPU bindings, or byte-size
// overflow. It is fatal — callers should treat it as a programmer error to
// fix, not a condition to retry.
var ErrConfigurationInvalid = errors.New("configuration invalid")
