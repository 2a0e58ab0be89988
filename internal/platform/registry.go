package platform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/content-aggregator/pkg/logger"
)

// Registry resolves a platform-type string to its adapter instance.
// It is built once from the registered adapters and read-only thereafter.
type Registry struct {
	adapters map[string]Adapter
	log      *logger.Logger
}

// NewRegistry builds a registry from the given adapters. Keys are
// case-insensitive; on a duplicate key the first-registered adapter wins
// and the collision is logged.
func NewRegistry(log *logger.Logger, adapters ...Adapter) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter, len(adapters)),
		log:      log.WithComponent("registry"),
	}
	for _, a := range adapters {
		key := normalizeKey(a.Type())
		if _, exists := r.adapters[key]; exists {
			r.log.Warn().Str("type", a.Type()).Msg("Duplicate platform adapter type, keeping the first")
			continue
		}
		r.adapters[key] = a
	}
	r.log.Info().Strs("types", r.SupportedTypes()).Msg("Registered platform adapters")
	return r
}

// Resolve returns the adapter for a platform type, or a not-found platform
// error listing the registered types.
func (r *Registry) Resolve(platformType string) (Adapter, error) {
	adapter, ok := r.adapters[normalizeKey(platformType)]
	if !ok {
		return nil, NewError(platformType, ErrKindNotFound,
			fmt.Sprintf("no adapter registered for platform type %q; registered types: %v",
				platformType, r.SupportedTypes()), nil)
	}
	return adapter, nil
}

// SupportedTypes returns the sorted registered platform type keys
func (r *Registry) SupportedTypes() []string {
	types := make([]string, 0, len(r.adapters))
	for key := range r.adapters {
		types = append(types, key)
	}
	sort.Strings(types)
	return types
}

// IsSupported reports whether a platform type has a registered adapter
func (r *Registry) IsSupported(platformType string) bool {
	_, ok := r.adapters[normalizeKey(platformType)]
	return ok
}

func normalizeKey(platformType string) string {
	return strings.ToUpper(strings.TrimSpace(platformType))
}
