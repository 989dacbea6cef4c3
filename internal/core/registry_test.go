package core

import (
	"slices"
	"testing"
)

type nilCtorModule struct{}

func (nilCtorModule) ModuleInfo() ModuleInfo { return ModuleInfo{ID: "store.broken"} }

func TestMissing(t *testing.T) {
	t.Cleanup(resetRegistry)
	RegisterModule(&trackingModule{id: "store.sqlite"})
	RegisterModule(&trackingModule{id: "gateway.http"})

	got := Missing([]string{"store.nosql", "gateway.http", "alpha.x", "store.nosql", "store.sqlite"})
	want := []string{"alpha.x", "store.nosql"}
	if !slices.Equal(got, want) {
		t.Errorf("Missing = %v, want %v", got, want)
	}
	if got := Missing([]string{"store.sqlite"}); len(got) != 0 {
		t.Errorf("Missing = %v, want none", got)
	}
}

func TestGetModules_SortedByID(t *testing.T) {
	t.Cleanup(resetRegistry)
	RegisterModule(&trackingModule{id: "store.sqlite"})
	RegisterModule(&trackingModule{id: "gateway.http"})

	var ids []ModuleID
	for _, info := range GetModules() {
		ids = append(ids, info.ID)
	}
	if want := []ModuleID{"gateway.http", "store.sqlite"}; !slices.Equal(ids, want) {
		t.Errorf("GetModules = %v, want %v", ids, want)
	}
}

func TestRegisterModule_Panics(t *testing.T) {
	t.Cleanup(resetRegistry)
	RegisterModule(&trackingModule{id: "store.sqlite"})

	tests := []struct {
		name string
		mod  Module
	}{
		{"duplicate", &trackingModule{id: "store.sqlite"}},
		{"empty id", &trackingModule{id: ""}},
		{"nil constructor", nilCtorModule{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			RegisterModule(tt.mod)
		})
	}
}
