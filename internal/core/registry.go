package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// registry is the process-wide module table filled from init functions.
var registry = struct {
	sync.RWMutex
	infos map[string]ModuleInfo
}{infos: make(map[string]ModuleInfo)}

// RegisterModule records the module described by instance.ModuleInfo().
// Call it from init; it panics on an empty ID, a nil constructor or an ID
// that is already taken, since these are programming errors.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s: nil constructor", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.infos[string(info.ID)]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registry.infos[string(info.ID)] = info
}

// GetModule looks up a registered module.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.infos[id]
	return info, ok
}

// GetModules lists every registered module ordered by ID. The version
// command and the admin API print it.
func GetModules() []ModuleInfo {
	registry.RLock()
	infos := make([]ModuleInfo, 0, len(registry.infos))
	for _, info := range registry.infos {
		infos = append(infos, info)
	}
	registry.RUnlock()

	slices.SortFunc(infos, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return infos
}

// Missing returns the ids, sorted and deduplicated, that no module was
// registered under.
func Missing(ids []string) []string {
	registry.RLock()
	var out []string
	for _, id := range ids {
		if _, ok := registry.infos[id]; !ok {
			out = append(out, id)
		}
	}
	registry.RUnlock()

	slices.Sort(out)
	return slices.Compact(out)
}

// resetRegistry empties the table between tests.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.infos = make(map[string]ModuleInfo)
}
