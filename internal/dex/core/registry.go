package core

import "fmt"

// Registry keeps venues in configured order; that order is the final
// tie-break when two quotes are otherwise equal.
type Registry struct {
	venues []Venue
	names  map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{}, 8)}
}

func (r *Registry) Register(v Venue) error {
	name := v.Descriptor().String()
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("venue %q registered twice", name)
	}
	r.names[name] = struct{}{}
	r.venues = append(r.venues, v)
	return nil
}

func (r *Registry) All() []Venue {
	out := make([]Venue, len(r.venues))
	copy(out, r.venues)
	return out
}

func (r *Registry) Len() int { return len(r.venues) }
