package maintenance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeOptimizer struct {
	calls int
	err   error
}

func (f *fakeOptimizer) Optimize(context.Context) (int64, int64, error) {
	f.calls++
	if f.err != nil {
		return 0, 0, f.err
	}
	return 4096, 1024, nil
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestClearCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"), 100)
	writeFile(t, filepath.Join(dir, "thumbs", "b.jpg"), 50)
	writeFile(t, filepath.Join(dir, "thumbs", "deep", "c.jpg"), 25)

	svc := New(dir, nil, nil, nil)
	result, err := svc.ClearCache(context.Background())
	if err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if result.RemovedFiles != 3 {
		t.Errorf("RemovedFiles = %d, want 3", result.RemovedFiles)
	}
	if result.FreedBytes != 175 {
		t.Errorf("FreedBytes = %d, want 175", result.FreedBytes)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("cache dir should still exist: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("cache dir has %d entries, want 0", len(entries))
	}
}

func TestClearCache_MissingDir(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "absent"), nil, nil, nil)
	result, err := svc.ClearCache(context.Background())
	if err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if result.RemovedFiles != 0 || result.FreedBytes != 0 {
		t.Errorf("result = %+v, want zero", result)
	}
}

func TestClearCache_NoDir(t *testing.T) {
	svc := New("", nil, nil, nil)
	if _, err := svc.ClearCache(context.Background()); !errors.Is(err, ErrNoCacheDir) {
		t.Errorf("ClearCache() error = %v, want ErrNoCacheDir", err)
	}
}

func TestOptimize(t *testing.T) {
	tests := []struct {
		name      string
		boost     bool
		dbErr     error
		wantErr   error
		wantCalls int
	}{
		{name: "boost enabled", boost: true, wantCalls: 1},
		{name: "boost disabled", boost: false, wantErr: ErrBoostDisabled},
		{name: "database error", boost: true, dbErr: errors.New("disk I/O error"), wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeOptimizer{err: tt.dbErr}
			svc := New("", db, func() bool { return tt.boost }, nil)

			result, err := svc.Optimize(context.Background())
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Optimize() error = %v, want %v", err, tt.wantErr)
				}
			case tt.dbErr != nil:
				if !errors.Is(err, tt.dbErr) {
					t.Fatalf("Optimize() error = %v, want %v", err, tt.dbErr)
				}
			default:
				if err != nil {
					t.Fatalf("Optimize() error = %v", err)
				}
				if result.DatabaseBytesBefore != 4096 || result.DatabaseBytesAfter != 1024 {
					t.Errorf("result = %+v", result)
				}
				if result.HeapBytesAfter == 0 {
					t.Error("HeapBytesAfter = 0")
				}
			}
			if db.calls != tt.wantCalls {
				t.Errorf("db calls = %d, want %d", db.calls, tt.wantCalls)
			}
		})
	}
}
