package sim

import (
	"fmt"
	"sort"
)

// Registry holds brokers by a stable name. It is owned by whoever creates
// it; brokers stay registered until removed.
type Registry struct {
	brokers map[string]*Broker
}

func NewRegistry() *Registry {
	return &Registry{brokers: make(map[string]*Broker)}
}

// Register adds b under its settings name.
func (r *Registry) Register(b *Broker) error {
	name := b.settings.Name
	if _, ok := r.brokers[name]; ok {
		return fmt.Errorf("register broker: %q already registered", name)
	}
	r.brokers[name] = b
	return nil
}

func (r *Registry) Get(name string) (*Broker, bool) {
	b, ok := r.brokers[name]
	return b, ok
}

func (r *Registry) Remove(name string) {
	delete(r.brokers, name)
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.brokers))
	for name := range r.brokers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
