package builtin

import "github.com/marcelocantos/weld/internal/filter"

// RegisterAll adds all built-in filter builders to the registry.
func RegisterAll(r *filter.Registry) {
	r.Register(&Count{})
	r.Register(&Lower{})
	r.Register(&Match{})
	r.Register(&Prefix{})
	r.Register(&Replace{})
	r.Register(&Script{})
	r.Register(&Upper{})
}
