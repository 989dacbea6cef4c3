package config

import "slices"

// StoreModule backs the expirer and the job queue. Every run loads it,
// whether or not the modules section mentions it.
const StoreModule = "store.sqlite"

// Resolve returns the module load order: the store first, then every other
// configured module sorted by ID. The store is provisioned before the
// modules that resolve its services, and is stopped after them.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules)+1)
	for id := range cfg.Modules {
		if id != StoreModule {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return append([]string{StoreModule}, ids...)
}
