package strand

// Option configures a cell at construction time.
type Option func(*options)

// options holds per-cell construction configuration.
type options struct {
	name string
}

// WithName attaches a diagnostic name to the cell. Names appear in cycle
// errors, events, and inspect snapshots; they have no effect on graph
// behavior and need not be unique.
//
// Example:
//
//	total := strand.NewLeaf(0, strand.WithName("total"))
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// applyOptions applies the given options and returns the resulting config.
func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
