package launch

import "errors"

var (
	// ErrConfiguration marks malformed bounds or missing arguments. Fatal
	// before any process is launched.
	ErrConfiguration = errors.New("configuration error")

	// ErrResourceDiscovery marks the absence of any supported host source.
	ErrResourceDiscovery = errors.New("resource discovery error")

	// ErrInsufficientResources marks a host list too small for the run.
	ErrInsufficientResources = errors.New("insufficient resources")

	// ErrTopologyGeneration marks a non-zero exit of the topology generator.
	// No engine process is launched after it.
	ErrTopologyGeneration = errors.New("topology generation failed")

	// ErrEngineProcess marks a non-zero exit of the front-end or a backend.
	ErrEngineProcess = errors.New("engine process failed")

	// ErrComparisonUnavailable marks a missing or failing comparison tool.
	// It only ever degrades a score to 0.
	ErrComparisonUnavailable = errors.New("comparison unavailable")
)
