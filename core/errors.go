package core

import "errors"

// ErrInvalidCapacity is returned by the constructors when size < 1.
// It is the engine's only error condition; every other operation is total.
var ErrInvalidCapacity = errors.New("cachecore: size must be at least 1")
