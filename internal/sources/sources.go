package sources

import (
	"sort"
	"strings"
)

// Source is a payment app whose notifications are processed.
type Source struct {
	ID   string // package identifier, e.g. "net.one97.paytm"
	Name string
}

// Built-in UPI apps.
var (
	GooglePay = Source{ID: "com.google.android.apps.nbu.paisa.user", Name: "GPay"}
	Paytm     = Source{ID: "net.one97.paytm", Name: "Paytm"}
	PhonePe   = Source{ID: "com.phonepe.app", Name: "PhonePe"}
	Amazon    = Source{ID: "in.amazon.mShop.android.shopping", Name: "Amazon"}
)

// Registry is the allow-list of notification originators.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source. Panics on duplicate ID.
func (r *Registry) Register(s Source) {
	key := strings.ToLower(s.ID)
	if _, ok := r.sources[key]; ok {
		panic("duplicate source: " + key)
	}
	r.sources[key] = s
}

// Get returns the source with the given originator ID.
func (r *Registry) Get(originator string) (Source, bool) {
	s, ok := r.sources[strings.ToLower(strings.TrimSpace(originator))]
	return s, ok
}

// Allowed reports whether notifications from originator are processed.
func (r *Registry) Allowed(originator string) bool {
	_, ok := r.Get(originator)
	return ok
}

// All returns the registered sources ordered by ID.
func (r *Registry) All() []Source {
	all := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// DefaultRegistry returns a registry with the built-in UPI apps.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(GooglePay)
	r.Register(Paytm)
	r.Register(PhonePe)
	r.Register(Amazon)
	return r
}
