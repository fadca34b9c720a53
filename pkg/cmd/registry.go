package cmd

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry stores commands by lowercase name. It does not dispatch; adapters
// look commands up and invoke them with their own context.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command. Names are unique.
func (r *Registry) Register(c Command) error {
	name := strings.ToLower(c.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		return fmt.Errorf("command %q already registered", name)
	}
	r.commands[name] = c
	return nil
}

// MustRegister is Register for setup code.
func (r *Registry) MustRegister(cs ...Command) {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

// Get returns the command with the given name, or nil.
func (r *Registry) Get(name string) Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[strings.ToLower(name)]
}

// GetAll returns all registered commands, sorted by name.
func (r *Registry) GetAll() []Command {
	r.mu.RLock()
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}

// Help renders one "prefix+usage - description" line per command.
func (r *Registry) Help(prefix string) string {
	var b strings.Builder
	for _, c := range r.GetAll() {
		fmt.Fprintf(&b, "%s%s - %s\n", prefix, c.Usage(), c.Description())
	}
	return strings.TrimRight(b.String(), "\n")
}
