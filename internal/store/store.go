// Package store owns the load/create/save lifecycle of workbook containers.
// It is the single point of I/O with the persisted file: every operation runs
// inside an exclusive per-path session (load, mutate, save), and saves are
// atomic so a crash mid-write never leaves a corrupt or partial file.
package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/semaphore"

	"github.com/sheetforge/sheetforge/config"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// Gate coordinates capacity for concurrently open sessions
// (backed by runtime.Controller).
type Gate interface {
	AcquireSession(ctx context.Context) error
	ReleaseSession()
}

// Store serializes workbook access per normalized path. Two concurrent
// operations against the same file run strictly one after the other;
// operations against distinct paths proceed in parallel with no shared state.
type Store struct {
	mu    sync.Mutex
	locks map[string]*pathLock
	gate  Gate
}

// pathLock is a context-aware mutex with a reference count so idle entries
// can be dropped from the registry.
type pathLock struct {
	sem  *semaphore.Weighted
	refs int
}

// New constructs a Store. Gate can be nil for tests.
func New(gate Gate) *Store {
	return &Store{locks: make(map[string]*pathLock), gate: gate}
}

// acquire takes the exclusive session lock for a normalized path, blocking
// behind any in-flight session on the same path.
func (s *Store) acquire(ctx context.Context, path string) (*pathLock, error) {
	s.mu.Lock()
	l, ok := s.locks[path]
	if !ok {
		l = &pathLock{sem: semaphore.NewWeighted(1)}
		s.locks[path] = l
	}
	l.refs++
	s.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		s.drop(path, l)
		return nil, err
	}
	return l, nil
}

func (s *Store) release(path string, l *pathLock) {
	l.sem.Release(1)
	s.drop(path, l)
}

func (s *Store) drop(path string, l *pathLock) {
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, path)
	}
	s.mu.Unlock()
}

// normalize canonicalizes a path for lock identity. Callers are expected to
// have run the path through the security policy already; this is a defensive
// second normalization so "./a.xlsx" and "a.xlsx" share one session.
func normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// open loads the container at path, or creates an empty in-memory workbook
// with one default sheet when absent and create is set.
func open(path string, create bool) (*excelize.File, error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, xlerr.Wrap(xlerr.Path, err, "stat %q", path)
		}
		if !create {
			return nil, xlerr.New(xlerr.NotFound, "workbook does not exist: %q", path)
		}
		return excelize.NewFile(), nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, xlerr.Wrap(xlerr.Format, err, "parse container %q", path)
	}
	return f, nil
}

// Update runs fn against the workbook at path under the path's exclusive
// session and, when fn succeeds, persists the result atomically. On any
// error nothing is written: the previous valid file remains authoritative.
// When create is set a missing file starts as an empty workbook with one
// default sheet.
func (s *Store) Update(ctx context.Context, path string, create bool, fn func(*excelize.File) error) error {
	return s.session(ctx, path, create, fn, true)
}

// View runs fn read-only against the workbook at path, still serialized
// behind any writer on the same path. Nothing is persisted.
func (s *Store) View(ctx context.Context, path string, fn func(*excelize.File) error) error {
	return s.session(ctx, path, false, fn, false)
}

// Create persists a new empty workbook at path. It fails with Conflict when
// the file already exists.
func (s *Store) Create(ctx context.Context, path string) error {
	norm := normalize(path)
	if _, err := os.Stat(norm); err == nil {
		return xlerr.New(xlerr.Conflict, "workbook already exists: %q", path)
	}
	return s.Update(ctx, norm, true, func(*excelize.File) error { return nil })
}

func (s *Store) session(ctx context.Context, path string, create bool, fn func(*excelize.File) error, save bool) error {
	if s.gate != nil {
		if err := s.gate.AcquireSession(ctx); err != nil {
			return err
		}
		defer s.gate.ReleaseSession()
	}

	norm := normalize(path)
	l, err := s.acquire(ctx, norm)
	if err != nil {
		return err
	}
	defer s.release(norm, l)

	f, err := open(norm, create && save)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := fn(f); err != nil {
		// Discard the in-memory model: the persisted file is untouched, so
		// the operation is all-or-nothing.
		return err
	}
	if !save {
		return nil
	}
	return saveAtomic(f, norm)
}

// saveAtomic serializes the workbook to a temporary file in the target's
// directory and renames it over the target. Structural invariants are
// checked defensively before any bytes hit the disk.
func saveAtomic(f *excelize.File, path string) error {
	if err := CheckInvariants(f); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, config.TempFilePrefix+uuid.NewString()+filepath.Ext(path))
	w, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return xlerr.Wrap(xlerr.Path, err, "create temp file in %q", dir)
	}
	if err := f.Write(w); err != nil {
		w.Close()
		os.Remove(tmp)
		return xlerr.Wrap(xlerr.Format, err, "serialize container")
	}
	if err := w.Close(); err != nil {
		os.Remove(tmp)
		return xlerr.Wrap(xlerr.Format, err, "flush temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return xlerr.Wrap(xlerr.Path, err, "replace %q", path)
	}
	return nil
}

// CheckInvariants verifies workbook-level structural invariants before a
// save: unique sheet names (case-insensitive), unique table names across the
// workbook, and non-overlapping tables per sheet.
func CheckInvariants(f *excelize.File) error {
	sheets := f.GetSheetList()
	seenSheets := make(map[string]struct{}, len(sheets))
	for _, name := range sheets {
		key := strings.ToLower(name)
		if _, dup := seenSheets[key]; dup {
			return xlerr.New(xlerr.Format, "duplicate sheet name %q", name)
		}
		seenSheets[key] = struct{}{}
	}

	tableNames := map[string]string{} // lowercase name -> sheet
	for _, sheet := range sheets {
		tables, err := f.GetTables(sheet)
		if err != nil {
			return xlerr.Wrap(xlerr.Format, err, "read tables on %q", sheet)
		}
		rects := make([]rect, 0, len(tables))
		for _, tbl := range tables {
			key := strings.ToLower(tbl.Name)
			if owner, dup := tableNames[key]; dup {
				return xlerr.New(xlerr.Format, "table name %q duplicated on %q and %q", tbl.Name, owner, sheet)
			}
			tableNames[key] = sheet
			r, err := parseRect(tbl.Range)
			if err != nil {
				return xlerr.Wrap(xlerr.Format, err, "table %q range", tbl.Name)
			}
			for _, prev := range rects {
				if r.overlaps(prev) {
					return xlerr.New(xlerr.Format, "tables overlap on sheet %q", sheet)
				}
			}
			rects = append(rects, r)
		}
	}
	return nil
}

type rect struct{ x1, y1, x2, y2 int }

func (r rect) overlaps(o rect) bool {
	return r.x1 <= o.x2 && o.x1 <= r.x2 && r.y1 <= o.y2 && o.y1 <= r.y2
}

func parseRect(a1 string) (rect, error) {
	parts := strings.SplitN(a1, ":", 2)
	x1, y1, err := excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return rect{}, err
	}
	x2, y2 := x1, y1
	if len(parts) == 2 {
		x2, y2, err = excelize.CellNameToCoordinates(parts[1])
		if err != nil {
			return rect{}, err
		}
	}
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return rect{x1: x1, y1: y1, x2: x2, y2: y2}, nil
}
