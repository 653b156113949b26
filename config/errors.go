package config

import "errors"

// ErrInvalidConfig indicates a setting that cannot be used.
var ErrInvalidConfig = errors.New("invalid config")
