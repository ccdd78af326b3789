package segvtest

import (
	"log"
	"os"
)

// Option configures Install, Run and the assertion helpers.
type Option interface {
	apply(*config)
}

type config struct {
	errorLogger func(err error)
	logf        func(format string, args ...interface{})
}

const (
	// ENV_VERBOSE, when set to a non-empty value, makes the default logger
	// write through the standard log package.
	ENV_VERBOSE = "SEGVTEST_VERBOSE"
)

func makeDefaultConfig() config {
	cfg := config{
		errorLogger: func(err error) {},
		logf:        func(string, ...interface{}) {},
	}
	if os.Getenv(ENV_VERBOSE) != "" {
		cfg.logf = log.Printf
		cfg.errorLogger = func(err error) { log.Printf("segvtest: %s", err) }
	}
	return cfg
}

func makeConfig(opts []Option) config {
	cfg := makeDefaultConfig()
	for _, o := range opts {
		o.apply(&cfg)
	}
	return cfg
}

type optionFunc func(cfg *config)

func (f optionFunc) apply(cfg *config) {
	f(cfg)
}

// WithErrorLogger sets a function to be called with errors (for example for
// logging them): installation failures and rejected nested guards.
func WithErrorLogger(f func(err error)) Option {
	return optionFunc(func(cfg *config) {
		cfg.errorLogger = f
	})
}

// WithLogf sets a printf-style function that is told about every intercepted
// fault and every relayed panic. Passing t.Logf ties the output to the test.
func WithLogf(f func(format string, args ...interface{})) Option {
	return optionFunc(func(cfg *config) {
		cfg.logf = f
	})
}
