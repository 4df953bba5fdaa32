package session

import "testing"

func TestRegistryMutexForIsStablePerPath(t *testing.T) {
	a1 := registryMutexFor("/mnt/famfs/.meta/.log")
	a2 := registryMutexFor("/mnt/famfs/.meta/.log")
	if a1 != a2 {
		t.Fatalf("expected the same mutex for the same path")
	}

	b := registryMutexFor("/mnt/other/.meta/.log")
	if a1 == b {
		t.Fatalf("expected distinct mutexes for distinct paths")
	}
}
