package validation

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sheetforge/sheetforge/pkg/pagination"
)

type sampleInput struct {
	Path   string `validate:"required,filepath_ext"`
	Sheet  string `validate:"required,sheetname"`
	Range  string `validate:"omitempty,a1range"`
	Cursor string `validate:"omitempty,cursor"`
}

func TestValidateStructOK(t *testing.T) {
	token, err := pagination.EncodeCursor(pagination.Cursor{P: "/b.xlsx", S: "Sheet1", R: "A1:B2", Ps: 10})
	require.NoError(t, err)

	msg := ValidateStruct(sampleInput{
		Path:   "/data/book.xlsx",
		Sheet:  "Sheet1",
		Range:  "A1:D50",
		Cursor: token,
	})
	require.Empty(t, msg)
}

func TestValidateStructFailures(t *testing.T) {
	cases := []struct {
		name string
		in   sampleInput
		want string
	}{
		{"missing path", sampleInput{Sheet: "S"}, "path is required"},
		{"bad extension", sampleInput{Path: "/data/book.csv", Sheet: "S"}, "workbook file"},
		{"bad sheet", sampleInput{Path: "/b.xlsx", Sheet: "a[b]"}, "none of"},
		{"bad range", sampleInput{Path: "/b.xlsx", Sheet: "S", Range: "1A:zz"}, "A1 cell or range"},
		{"bad cursor", sampleInput{Path: "/b.xlsx", Sheet: "S", Cursor: "!!!"}, "decode cursor"},
	}
	for _, tc := range cases {
		msg := ValidateStruct(tc.in)
		require.NotEmpty(t, msg, tc.name)
		require.Contains(t, msg, tc.want, tc.name)
	}
}

func TestA1RangeTag(t *testing.T) {
	type in struct {
		R string `validate:"a1range"`
	}
	for _, ok := range []string{"A1", "B2:C9", "$A$1:$D$50", "Sheet1!A1:B2", "'My Sheet'!A1"} {
		require.Empty(t, ValidateStruct(in{R: ok}), ok)
	}
	for _, bad := range []string{"", "A", "1", "A1:B2:C3", "A1:"} {
		require.NotEmpty(t, ValidateStruct(in{R: bad}), bad)
	}
}

func TestSheetNameTagCountsRunes(t *testing.T) {
	type in struct {
		Sheet string `validate:"required,sheetname"`
	}
	require.Empty(t, ValidateStruct(in{Sheet: strings.Repeat("é", 31)}),
		"31 runes is within the limit even when over 31 bytes")
	require.NotEmpty(t, ValidateStruct(in{Sheet: strings.Repeat("é", 32)}))
}

func TestValidatorConcurrentFirstUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Validator()
		}()
	}
	wg.Wait()
	require.NotNil(t, Validator())
}
