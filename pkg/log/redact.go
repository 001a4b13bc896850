package log

// WithRedactions configures the slog bridge to replace the named field keys
// with "[REDACTED]" before formatting. Useful for upstream URLs or other
// endpoint identifiers that should not leak into shared log aggregators.
func WithRedactions(keys ...string) LoggerOption {
	return func(l *BaseLogger) {
		l.redactKeys = append(l.redactKeys, keys...)
	}
}

// WithSampling configures the slog bridge to emit the first `initial`
// occurrences of each distinct (level, message) pair, then one in every
// `thereafter` occurrences. Useful for noisy per-frame debug logging in the
// dispatcher and poll driver.
func WithSampling(initial, thereafter int) LoggerOption {
	return func(l *BaseLogger) {
		l.sampleInitial = initial
		l.sampleThereafter = thereafter
	}
}
