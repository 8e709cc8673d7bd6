package seld

import "github.com/himanishpuri/seldkit/pkg/logger"

// BoundsPolicy decides what Get does when a chunk window runs past the end of
// the time axis.
type BoundsPolicy int

const (
	// FailFast returns ErrChunkOutOfBounds.
	FailFast BoundsPolicy = iota
	// Truncate returns the shorter window that fits, the way array slicing
	// in most numeric libraries behaves. Offsets are never negative, so no
	// window counts from the end.
	Truncate
)

func (p BoundsPolicy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case Truncate:
		return "truncate"
	default:
		return "unknown"
	}
}

// Logger is the logging surface the package needs.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

type config struct {
	jointTransform JointTransform
	transform      Transform
	bounds         BoundsPolicy
	log            Logger
}

type Option func(*config)

// WithJointTransform sets the hook that may alter features and labels.
func WithJointTransform(t JointTransform) Option {
	return func(c *config) {
		c.jointTransform = t
	}
}

// WithTransform sets the features-only hook, applied after the joint one.
func WithTransform(t Transform) Option {
	return func(c *config) {
		c.transform = t
	}
}

func WithBoundsPolicy(p BoundsPolicy) Option {
	return func(c *config) {
		c.bounds = p
	}
}

func WithLogger(log Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

func defaultConfig() *config {
	return &config{bounds: FailFast}
}

func (c *config) apply(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.GetLogger().Named("seld")
	}
}
