package sources

import "fmt"

// Registry holds the known adapters in priority order.
type Registry struct {
	adapters []Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Select returns the first adapter claiming the URL. No claim means the site
// is not supported, which is a layout fault and not worth retrying.
func (r *Registry) Select(rawURL string) (Adapter, error) {
	for _, a := range r.adapters {
		if a.Match(rawURL) {
			return a, nil
		}
	}

	return nil, fmt.Errorf("no source adapter for %q: %w", rawURL, ErrUnrecognizedLayout)
}
