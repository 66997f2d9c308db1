package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

var (
	ErrOperatorExists   = errors.New("operator already registered")
	ErrOperatorNotFound = errors.New("operator not found")
)

// OperatorFactory builds an operator that draws from rng.
type OperatorFactory func(rng *rand.Rand) Operator

var operatorRegistry = struct {
	mu sync.RWMutex
	m  map[string]OperatorFactory
}{
	m: defaultOperators(),
}

func defaultOperators() map[string]OperatorFactory {
	return map[string]OperatorFactory{
		"perturb_random_trait": func(rng *rand.Rand) Operator {
			return &PerturbRandomTrait{Rand: rng, MaxDelta: 0.5}
		},
		"perturb_all_traits": func(rng *rand.Rand) Operator {
			return &PerturbAllTraits{Rand: rng, Sigma: 0.1}
		},
	}
}

func RegisterOperator(name string, factory OperatorFactory) error {
	if name == "" {
		return errors.New("operator name is required")
	}
	if factory == nil {
		return errors.New("operator factory is required")
	}

	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()

	if _, exists := operatorRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, name)
	}
	operatorRegistry.m[name] = factory
	return nil
}

// ResolveOperator builds the operator registered under name.
func ResolveOperator(name string, rng *rand.Rand) (Operator, error) {
	operatorRegistry.mu.RLock()
	factory, ok := operatorRegistry.m[name]
	operatorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	return factory(rng), nil
}

func ListOperators() []string {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()

	names := make([]string, 0, len(operatorRegistry.m))
	for name := range operatorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetOperatorRegistryForTests() {
	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()
	operatorRegistry.m = defaultOperators()
}
