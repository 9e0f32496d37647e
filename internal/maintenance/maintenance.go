package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Optimizer compacts a database. *database.DB satisfies it.
type Optimizer interface {
	Optimize(ctx context.Context) (before, after int64, err error)
}

// ClearResult reports what ClearCache removed.
type ClearResult struct {
	RemovedFiles int   `json:"removedFiles"`
	FreedBytes   int64 `json:"freedBytes"`
}

// OptimizeResult reports the effect of Optimize.
type OptimizeResult struct {
	DatabaseBytesBefore int64  `json:"databaseBytesBefore"`
	DatabaseBytesAfter  int64  `json:"databaseBytesAfter"`
	HeapBytesBefore     uint64 `json:"heapBytesBefore"`
	HeapBytesAfter      uint64 `json:"heapBytesAfter"`
	DurationMs          int64  `json:"durationMs"`
}

// Service runs maintenance operations.
//
// Thread Safety: all methods are safe for concurrent use.
type Service struct {
	cacheDir string
	db       Optimizer
	boost    func() bool
	logger   Logger

	optimizing sync.Mutex
}

// New creates a maintenance service.
//
// Parameters:
//   - cacheDir: directory whose contents ClearCache removes (may be empty)
//   - db: database to compact during Optimize (may be nil)
//   - boost: reports whether performanceBoostEnabled is set; nil allows Optimize
//   - logger: Logger instance (may be nil)
func New(cacheDir string, db Optimizer, boost func() bool, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		cacheDir: cacheDir,
		db:       db,
		boost:    boost,
		logger:   logger,
	}
}

// ClearCache removes every entry inside the cache directory, leaving the
// directory itself. A missing directory counts as already empty.
//
// Entries that cannot be removed are skipped and reported in the returned
// error; the result still counts what was removed.
func (s *Service) ClearCache(ctx context.Context) (ClearResult, error) {
	var result ClearResult
	if s.cacheDir == "" {
		return result, ErrNoCacheDir
	}

	entries, err := os.ReadDir(s.cacheDir)
	if errors.Is(err, fs.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("reading cache dir: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		path := filepath.Join(s.cacheDir, entry.Name())
		files, size := treeSize(path)
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", entry.Name(), err))
			continue
		}
		result.RemovedFiles += files
		result.FreedBytes += size
	}

	s.logger.Info("cache cleared",
		"dir", s.cacheDir,
		"removed_files", result.RemovedFiles,
		"freed_bytes", result.FreedBytes,
	)
	return result, errors.Join(errs...)
}

// Optimize compacts the database and returns freed heap to the OS. It
// requires performanceBoostEnabled.
func (s *Service) Optimize(ctx context.Context) (OptimizeResult, error) {
	var result OptimizeResult
	if s.boost != nil && !s.boost() {
		return result, ErrBoostDisabled
	}
	if !s.optimizing.TryLock() {
		return result, ErrBusy
	}
	defer s.optimizing.Unlock()

	start := time.Now()
	result.HeapBytesBefore = heapInUse()

	if s.db != nil {
		before, after, err := s.db.Optimize(ctx)
		if err != nil {
			return result, fmt.Errorf("optimizing database: %w", err)
		}
		result.DatabaseBytesBefore = before
		result.DatabaseBytesAfter = after
	}

	runtime.GC()
	debug.FreeOSMemory()

	result.HeapBytesAfter = heapInUse()
	result.DurationMs = time.Since(start).Milliseconds()

	s.logger.Info("performance optimisation complete",
		"db_before", result.DatabaseBytesBefore,
		"db_after", result.DatabaseBytesAfter,
		"heap_before", result.HeapBytesBefore,
		"heap_after", result.HeapBytesAfter,
	)
	return result, nil
}

// treeSize counts regular files and their bytes under path.
func treeSize(path string) (files int, size int64) {
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort accounting
		}
		if d.Type().IsRegular() {
			if info, infoErr := d.Info(); infoErr == nil {
				files++
				size += info.Size()
			}
		}
		return nil
	})
	return files, size
}

func heapInUse() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapInuse
}
