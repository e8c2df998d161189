package utils

import "testing"

func TestTokenStore_SetNotifiesObservers(t *testing.T) {
	store := NewTokenStore("a1", "r1")

	var seen []string
	store.OnChange(func(access string) { seen = append(seen, access) })

	store.Set("a2", "r2")
	if store.Access() != "a2" || store.Refresh() != "r2" {
		t.Fatalf("store not updated: %s/%s", store.Access(), store.Refresh())
	}
	store.Clear()
	if store.Access() != "" || store.Refresh() != "" {
		t.Fatal("clear must drop both tokens")
	}
	if len(seen) != 2 || seen[0] != "a2" || seen[1] != "" {
		t.Fatalf("unexpected notifications: %v", seen)
	}
}
