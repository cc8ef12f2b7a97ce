package models

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/resolution"
)

func TestDictionaryCacheCollapsesConcurrentLoads(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	cache := &DictionaryCache{
		Loader: func(ctx context.Context) (*DictionarySnapshot, error) {
			atomic.AddInt32(&calls, 1)
			<-release
			return &DictionarySnapshot{Crops: []Crop{{ID: 1, CropName: "Пшеница"}}}, nil
		},
	}

	var wg sync.WaitGroup
	results := make([]*DictionarySnapshot, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := cache.Get(context.Background())
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			results[i] = snap
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one load, got %d", got)
	}
	for i, r := range results {
		if r == nil || len(r.Crops) != 1 {
			t.Fatalf("result %d missing snapshot", i)
		}
	}

	// served from memory afterwards
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected cached snapshot, loader ran %d times", got)
	}
}

func TestDictionaryCacheInvalidateAndErrors(t *testing.T) {
	fail := true
	cache := &DictionaryCache{
		Loader: func(ctx context.Context) (*DictionarySnapshot, error) {
			if fail {
				return nil, errors.New("db down")
			}
			return &DictionarySnapshot{}, nil
		},
	}
	if _, err := cache.Get(context.Background()); err == nil {
		t.Fatalf("expected loader error to surface")
	}
	fail = false
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("expected retry after failure to succeed: %v", err)
	}
	if err := cache.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
}

func TestDictionarySnapshotResolutionAndNames(t *testing.T) {
	snap := &DictionarySnapshot{
		Departments: []Department{{ID: 4, Subdivision: "Отделение 4", ProductionUnit: "ПУ Юг", DepartmentNumber: "44", Aliases: "юг4"}},
		Operations:  []Operation{{ID: 5, OperationName: "Сев"}},
		Crops:       []Crop{{ID: 6, CropName: "Кукуруза", Aliases: "кукуруза на зерно"}},
	}
	rs := snap.Resolution()
	if !resolution.IsValid(resolution.Resolve(resolution.DimensionDepartment, resolution.Label{Value: "44"}, rs.Departments)) {
		t.Fatalf("department number should resolve")
	}
	if !resolution.IsValid(resolution.Resolve(resolution.DimensionCrop, resolution.Label{Value: "кукуруза на зерно"}, rs.Crops)) {
		t.Fatalf("crop alias should resolve")
	}
	if name, ok := snap.Name(resolution.DimensionOperation, 5); !ok || name != "Сев" {
		t.Fatalf("Name: got %q %v", name, ok)
	}
	if _, ok := snap.Name(resolution.DimensionCrop, 99); ok {
		t.Fatalf("unknown id should not resolve a name")
	}
}
