package health

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryCheckAll(t *testing.T) {
	r := NewRegistry()
	r.Register("database", CheckerFunc(func(context.Context) error { return nil }))
	r.Register("cache", CheckerFunc(func(context.Context) error { return errors.New("down") }))

	results := r.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results["database"] != nil {
		t.Errorf("expected database healthy, got %v", results["database"])
	}
	if results["cache"] == nil {
		t.Error("expected cache unhealthy")
	}
	if Healthy(results) {
		t.Error("expected overall status to be unhealthy")
	}

	r.Unregister("cache")
	if !Healthy(r.CheckAll(context.Background())) {
		t.Error("expected healthy after removing failing checker")
	}
	if names := r.List(); len(names) != 1 || names[0] != "database" {
		t.Errorf("unexpected names: %v", names)
	}
}
