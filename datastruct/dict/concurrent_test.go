package dict

import (
	"strconv"
	"sync"
	"testing"
)

func TestPutGetRemove(t *testing.T) {
	d := MakeConcurrent(16)
	if ret := d.Put("a", 1); ret != 1 {
		t.Errorf("expect 1 for new key, actually %d", ret)
	}
	if ret := d.Put("a", 2); ret != 0 {
		t.Errorf("expect 0 for existing key, actually %d", ret)
	}
	val, ok := d.Get("a")
	if !ok || val != 2 {
		t.Errorf("unexpected value: %v %v", val, ok)
	}
	if ret := d.Remove("a"); ret != 1 {
		t.Errorf("expect 1 removed, actually %d", ret)
	}
	if _, ok := d.Get("a"); ok {
		t.Error("key should be removed")
	}
	if d.Len() != 0 {
		t.Errorf("expect empty dict, actually %d", d.Len())
	}
}

func TestPutIfAbsentIfExists(t *testing.T) {
	d := MakeConcurrent(16)
	if ret := d.PutIfExists("a", 1); ret != 0 {
		t.Errorf("expect 0, actually %d", ret)
	}
	if ret := d.PutIfAbsent("a", 1); ret != 1 {
		t.Errorf("expect 1, actually %d", ret)
	}
	if ret := d.PutIfAbsent("a", 2); ret != 0 {
		t.Errorf("expect 0, actually %d", ret)
	}
	if ret := d.PutIfExists("a", 3); ret != 1 {
		t.Errorf("expect 1, actually %d", ret)
	}
	val, _ := d.Get("a")
	if val != 3 {
		t.Errorf("expect 3, actually %v", val)
	}
}

func TestConcurrentPut(t *testing.T) {
	d := MakeConcurrent(16)
	workers := 8
	loops := 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < loops; j++ {
				key := strconv.Itoa(worker*loops + j)
				d.Put(key, worker)
			}
		}(i)
	}
	wg.Wait()
	if d.Len() != workers*loops {
		t.Errorf("expect %d keys, actually %d", workers*loops, d.Len())
	}
}

func TestForEachAndKeys(t *testing.T) {
	d := MakeConcurrent(16)
	for i := 0; i < 10; i++ {
		d.Put(strconv.Itoa(i), i)
	}
	visited := 0
	d.ForEach(func(key string, val interface{}) bool {
		visited++
		return true
	})
	if visited != 10 {
		t.Errorf("expect 10 visits, actually %d", visited)
	}
	if keys := d.Keys(); len(keys) != 10 {
		t.Errorf("expect 10 keys, actually %d", len(keys))
	}
}

func TestRandomKeys(t *testing.T) {
	d := MakeConcurrent(16)
	for i := 0; i < 10; i++ {
		d.Put(strconv.Itoa(i), i)
	}
	if keys := d.RandomKeys(5); len(keys) != 5 {
		t.Errorf("expect 5 keys, actually %d", len(keys))
	}
	keys := d.RandomDistinctKeys(5)
	if len(keys) != 5 {
		t.Fatalf("expect 5 keys, actually %d", len(keys))
	}
	seen := make(map[string]struct{})
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			t.Errorf("duplicate key %s", key)
		}
		seen[key] = struct{}{}
	}
}
