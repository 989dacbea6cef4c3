package core

import "strings"

// ModuleID identifies a module using a dotted namespace, e.g. "store.sqlite".
type ModuleID string

// Namespace returns everything before the last dot, or "" for a bare ID.
func (id ModuleID) Namespace() string {
	s := string(id)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[:i]
	}
	return ""
}

// Name returns the part of the ID after the last dot.
func (id ModuleID) Name() string {
	s := string(id)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is the interface every module must implement.
type Module interface {
	ModuleInfo() ModuleInfo
}
