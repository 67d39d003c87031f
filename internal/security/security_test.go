package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

func TestResolveContained(t *testing.T) {
	root := t.TempDir()
	p, err := NewPolicy([]string{root}, nil)
	require.NoError(t, err)

	target := filepath.Join(root, "book.xlsx")
	got, err := p.Resolve(target)
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(got))
	require.Equal(t, "book.xlsx", filepath.Base(got))
}

func TestResolveNotYetExistingFile(t *testing.T) {
	root := t.TempDir()
	p, err := NewPolicy([]string{root}, nil)
	require.NoError(t, err)

	// The workbook does not exist yet; creation at this path must be allowed.
	_, err = p.Resolve(filepath.Join(root, "new.xlsx"))
	require.NoError(t, err)
}

func TestResolveRejectsEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	p, err := NewPolicy([]string{root}, nil)
	require.NoError(t, err)

	cases := []string{
		filepath.Join(outside, "other.xlsx"),
		filepath.Join(root, "..", "escape.xlsx"),
		"",
	}
	for _, in := range cases {
		_, err := p.Resolve(in)
		require.Error(t, err, in)
		require.True(t, xlerr.IsKind(err, xlerr.Path), in)
	}
}

func TestResolveRejectsTraversalSegments(t *testing.T) {
	root := t.TempDir()
	p, err := NewPolicy([]string{root}, nil)
	require.NoError(t, err)

	// Even when the cleaned path would land inside the root, traversal
	// segments are rejected outright.
	_, err = p.Resolve(filepath.Join(root, "sub", "..", "book.xlsx"))
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.Path))
}

func TestResolveRejectsUnsupportedExtension(t *testing.T) {
	root := t.TempDir()
	p, err := NewPolicy([]string{root}, nil)
	require.NoError(t, err)

	_, err = p.Resolve(filepath.Join(root, "notes.txt"))
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.Path))
}

func TestResolveSymlinkedFileOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "real.xlsx")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	link := filepath.Join(root, "link.xlsx")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	p, err := NewPolicy([]string{root}, nil)
	require.NoError(t, err)

	_, err = p.Resolve(link)
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.Path))
}

func TestValidateConfig(t *testing.T) {
	p, err := NewPolicy(nil, nil)
	require.NoError(t, err)
	require.Error(t, p.ValidateConfig())

	p, err = NewPolicy([]string{t.TempDir()}, nil)
	require.NoError(t, err)
	require.NoError(t, p.ValidateConfig())
}
