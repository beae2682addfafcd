package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithIDGenerator sets the function generating payout and match ids. It must
// be safe for concurrent use.
func WithIDGenerator(gen func() string) Option {
	return func(s *MemoryStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}
