package images

import (
	"context"
	"sync"
)

// Fake is a scripted provider for tests and offline runs.
type Fake struct {
	ProviderName string
	Unavailable  bool
	Images       []Image
	Err          error

	mu      sync.Mutex
	queries []Query
}

func (f *Fake) Name() string {
	if f.ProviderName == "" {
		return "fake"
	}
	return f.ProviderName
}

func (f *Fake) Available(context.Context) (bool, error) { return !f.Unavailable, nil }

func (f *Fake) Invoke(_ context.Context, q Query) ([]Image, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return apply(append([]Image(nil), f.Images...), q), nil
}

// Queries returns the queries received so far.
func (f *Fake) Queries() []Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Query(nil), f.queries...)
}
