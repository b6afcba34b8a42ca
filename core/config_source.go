package core

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// StaticConfigSource serves an in-process snapshot of enabled interfaces.
// Replace the snapshot wholesale with SetSnapshot; readers always observe a
// consistent copy. Suitable for tests and for hosts that refresh adapter
// configuration out of band.
type StaticConfigSource struct {
	mu         sync.RWMutex
	interfaces []InterfaceConfig
}

func NewStaticConfigSource(interfaces ...InterfaceConfig) *StaticConfigSource {
	source := &StaticConfigSource{}
	source.SetSnapshot(interfaces)
	return source
}

// SetSnapshot replaces the current snapshot. Disabled destinations are kept;
// filtering is the orchestrator's call, the source only reports configuration.
func (s *StaticConfigSource) SetSnapshot(interfaces []InterfaceConfig) {
	cloned := cloneInterfaceConfigs(interfaces)
	s.mu.Lock()
	s.interfaces = cloned
	s.mu.Unlock()
}

func (s *StaticConfigSource) EnabledInterfaces(ctx context.Context) ([]InterfaceConfig, error) {
	if s == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneInterfaceConfigs(s.interfaces), nil
}

func cloneInterfaceConfigs(interfaces []InterfaceConfig) []InterfaceConfig {
	if len(interfaces) == 0 {
		return nil
	}
	cloned := make([]InterfaceConfig, 0, len(interfaces))
	for _, iface := range interfaces {
		name := strings.TrimSpace(iface.Name)
		if name == "" {
			continue
		}
		next := InterfaceConfig{
			Name:         name,
			Destinations: make([]AdapterInstance, 0, len(iface.Destinations)),
		}
		for _, dest := range iface.Destinations {
			next.Destinations = append(next.Destinations, AdapterInstance{
				InstanceID:    dest.InstanceID,
				AdapterName:   dest.AdapterName,
				InterfaceName: dest.InterfaceName,
				IsEnabled:     dest.IsEnabled,
				Configuration: copyAnyMap(dest.Configuration),
			})
		}
		cloned = append(cloned, next)
	}
	sort.SliceStable(cloned, func(i, j int) bool {
		return cloned[i].Name < cloned[j].Name
	})
	return cloned
}

var _ ConfigSource = (*StaticConfigSource)(nil)
