package tracer

import (
	"context"
	"testing"
)

func TestRootFinder(t *testing.T) {
	calls := map[string]int{}
	marker := func(ctx context.Context, dir string) (bool, error) {
		calls[dir]++
		return dir == "/opt/conda" || dir == "/opt/conda/envs/py", nil
	}
	f := NewRootFinder(marker)

	tests := []struct {
		file, root string
		ok         bool
	}{
		{"/opt/conda/bin/python", "/opt/conda", true},
		{"/opt/conda/envs/py/lib/site.py", "/opt/conda/envs/py", true},
		{"/opt/conda/lib/x.so", "/opt/conda", true},
		{"/usr/bin/ls", "", false},
		{"docker-image:alpine", "", false},
	}
	for _, tt := range tests {
		root, ok, err := f.Find(context.Background(), tt.file)
		if err != nil {
			t.Fatalf("Find(%s): %v", tt.file, err)
		}
		if root != tt.root || ok != tt.ok {
			t.Errorf("Find(%s) = %q, %v; want %q, %v", tt.file, root, ok, tt.root, tt.ok)
		}
	}
	if _, ok := calls["."]; ok {
		t.Error("relative path must not be probed")
	}
	for dir, n := range calls {
		if n > 1 {
			t.Errorf("directory %s probed %d times", dir, n)
		}
	}
}
