package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

func TestCreateAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	s := New(nil)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, path))
	require.FileExists(t, path)

	// Creating again collides.
	err := s.Create(ctx, path)
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.Conflict))

	err = s.View(ctx, path, func(f *excelize.File) error {
		require.Equal(t, []string{"Sheet1"}, f.GetSheetList())
		return nil
	})
	require.NoError(t, err)
}

func TestViewMissingFile(t *testing.T) {
	s := New(nil)
	err := s.View(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"), func(*excelize.File) error { return nil })
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.NotFound))
}

func TestSaveReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	s := New(nil)
	ctx := context.Background()

	var styleID int
	err := s.Update(ctx, path, true, func(f *excelize.File) error {
		if err := f.SetCellValue("Sheet1", "A1", "hello"); err != nil {
			return err
		}
		if err := f.SetCellValue("Sheet1", "B2", 42.5); err != nil {
			return err
		}
		if err := f.SetCellFormula("Sheet1", "C3", "=SUM(B2:B2)"); err != nil {
			return err
		}
		var err error
		styleID, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		return f.SetCellStyle("Sheet1", "A1", "A1", styleID)
	})
	require.NoError(t, err)

	err = s.View(ctx, path, func(f *excelize.File) error {
		v, err := f.GetCellValue("Sheet1", "A1")
		require.NoError(t, err)
		require.Equal(t, "hello", v)

		v, err = f.GetCellValue("Sheet1", "B2")
		require.NoError(t, err)
		require.Equal(t, "42.5", v)

		fm, err := f.GetCellFormula("Sheet1", "C3")
		require.NoError(t, err)
		require.Equal(t, "SUM(B2:B2)", fm)

		id, err := f.GetCellStyle("Sheet1", "A1")
		require.NoError(t, err)
		st, err := f.GetStyle(id)
		require.NoError(t, err)
		require.NotNil(t, st.Font)
		require.True(t, st.Font.Bold)
		return nil
	})
	require.NoError(t, err)
}

func TestUntouchedRegionsPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	s := New(nil)
	ctx := context.Background()

	err := s.Update(ctx, path, true, func(f *excelize.File) error {
		_, err := f.NewSheet("Data")
		if err != nil {
			return err
		}
		if err := f.SetCellValue("Data", "Z99", "keep me"); err != nil {
			return err
		}
		return f.SetCellValue("Sheet1", "A1", "original")
	})
	require.NoError(t, err)

	// A later operation touching only Sheet1 must not disturb Data.
	err = s.Update(ctx, path, false, func(f *excelize.File) error {
		return f.SetCellValue("Sheet1", "A2", "second pass")
	})
	require.NoError(t, err)

	err = s.View(ctx, path, func(f *excelize.File) error {
		v, err := f.GetCellValue("Data", "Z99")
		require.NoError(t, err)
		require.Equal(t, "keep me", v)
		v, err = f.GetCellValue("Sheet1", "A1")
		require.NoError(t, err)
		require.Equal(t, "original", v)
		return nil
	})
	require.NoError(t, err)
}

func TestFailedUpdateLeavesFileIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	s := New(nil)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, path, true, func(f *excelize.File) error {
		return f.SetCellValue("Sheet1", "A1", "before")
	}))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = s.Update(ctx, path, false, func(f *excelize.File) error {
		require.NoError(t, f.SetCellValue("Sheet1", "A1", "mutated"))
		return xlerr.New(xlerr.Validation, "boom")
	})
	require.Error(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after, "failed operation must not persist anything")

	// No temp-file leftovers either.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	s := New(nil)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, path))

	var wg sync.WaitGroup
	write := func(val string) {
		defer wg.Done()
		err := s.Update(ctx, path, false, func(f *excelize.File) error {
			return f.SetCellValue("Sheet1", "A1", val)
		})
		require.NoError(t, err)
	}
	wg.Add(2)
	go write("first")
	go write("second")
	wg.Wait()

	// The final file reflects one of the two writes applied cleanly; the
	// container must still parse.
	err := s.View(ctx, path, func(f *excelize.File) error {
		v, err := f.GetCellValue("Sheet1", "A1")
		require.NoError(t, err)
		require.Contains(t, []string{"first", "second"}, v)
		return nil
	})
	require.NoError(t, err)
}

type busyGate struct{ err error }

func (g busyGate) AcquireSession(context.Context) error { return g.err }
func (g busyGate) ReleaseSession()                      {}

func TestGateDenied(t *testing.T) {
	s := New(busyGate{err: context.DeadlineExceeded})
	err := s.View(context.Background(), "any.xlsx", func(*excelize.File) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCheckInvariantsOverlappingTables(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"A", "B", "C", "D"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{1, 2, 3, 4}))
	require.NoError(t, f.AddTable("Sheet1", &excelize.Table{Range: "A1:B2", Name: "TblOne"}))
	require.NoError(t, f.AddTable("Sheet1", &excelize.Table{Range: "B1:D2", Name: "TblTwo"}))

	err := CheckInvariants(f)
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.Format))
}
