package speculative

import (
	"github.com/exascience/amorph/statistic"
)

type config struct {
	name  string
	stats *statistic.Registry
}

// An Option configures a ForEach loop.
type Option func(*config)

func newConfig(options []Option) config {
	cfg := config{name: "forEach"}
	for _, option := range options {
		option(&cfg)
	}
	return cfg
}

// Name sets the loop name under which statistics are reported.
func Name(name string) Option {
	return func(cfg *config) {
		cfg.name = name
	}
}

// Stats attaches the loop's statistics to a registry.
func Stats(registry *statistic.Registry) Option {
	return func(cfg *config) {
		cfg.stats = registry
	}
}
