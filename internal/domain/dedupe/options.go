package dedupe

// Option configures the in-memory deduper.
type Option func(*memory)

// WithMaxSize sets how many keys are retained. Zero or less keeps every key.
func WithMaxSize(n int) Option {
	return func(d *memory) {
		d.maxSize = n
	}
}
