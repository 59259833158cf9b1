package providers

import (
	"sort"
	"sync"

	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/types"
)

// Provider turns a workflow declaration into the job specs a compute
// backend can run.
type Provider interface {
	Name() string
	Load(workflow *types.Workflow, runName string) error
	JobSpecs() ([]types.JobSpec, error)
}

type Factory func() Provider

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = factory
}

func Get(name string) (Provider, error) {
	mu.RLock()
	defer mu.RUnlock()
	factory, ok := registry[name]
	if !ok {
		return nil, errors.NewProviderUnknownError(name)
	}
	return factory(), nil
}

func Has(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[name]
	return ok
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("task", func() Provider { return &TaskProvider{} })
	Register("code", func() Provider { return &CodeProvider{} })
	Register("notebook", func() Provider { return &NotebookProvider{} })
	Register("service", func() Provider { return &ServiceProvider{} })
}
