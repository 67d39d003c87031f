package validation

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/sheetforge/sheetforge/pkg/pagination"
)

var (
	v        *validator.Validate
	initOnce sync.Once
)

var (
	cellRe = regexp.MustCompile(`^\$?[A-Za-z]{1,3}\$?[0-9]+$`)
)

// Validator returns a singleton validator with custom rules registered.
// Initialization is guarded so concurrent tool handlers share one instance.
func Validator() *validator.Validate {
	initOnce.Do(func() {
		v = validator.New()
		// Custom: workbook path must carry a supported extension
		_ = v.RegisterValidation("filepath_ext", func(fl validator.FieldLevel) bool {
			s := strings.ToLower(strings.TrimSpace(fl.Field().String()))
			if s == "" {
				return false
			}
			return strings.HasSuffix(s, ".xlsx") || strings.HasSuffix(s, ".xlsm") || strings.HasSuffix(s, ".xltx") || strings.HasSuffix(s, ".xltm")
		})
		// Custom: A1-style cell or rectangular range, optional sheet qualifier
		_ = v.RegisterValidation("a1range", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return false
			}
			if i := strings.LastIndex(s, "!"); i >= 0 {
				s = s[i+1:]
			}
			parts := strings.Split(s, ":")
			if len(parts) > 2 {
				return false
			}
			for _, p := range parts {
				if !cellRe.MatchString(p) {
					return false
				}
			}
			return true
		})
		// Custom: worksheet name acceptable to the container format
		_ = v.RegisterValidation("sheetname", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if strings.TrimSpace(s) == "" || utf8.RuneCountInString(s) > 31 {
				return false
			}
			return !strings.ContainsAny(s, `[]:*?/\`)
		})
		// Custom: cursor must be decodable via pagination.DecodeCursor
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
				return false
			}
			if _, err := pagination.DecodeCursor(s); err != nil {
				return false
			}
			return true
		})
	})
	return v
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for MCP tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	if err := Validator().Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				return fmt.Sprintf("VALIDATION_ERROR: %s is required", field)
			case "required_without":
				return fmt.Sprintf("VALIDATION_ERROR: %s is required (or supply cursor)", field)
			case "filepath_ext":
				return "VALIDATION_ERROR: path must be a workbook file (.xlsx, .xlsm, .xltx, .xltm)"
			case "a1range":
				return fmt.Sprintf("VALIDATION_ERROR: %s must be an A1 cell or range like B2 or A1:D50", field)
			case "sheetname":
				return fmt.Sprintf(`VALIDATION_ERROR: %s must be 1-31 characters and contain none of []:*?/\`, field)
			case "cursor":
				return "VALIDATION_ERROR: failed to decode cursor; restart pagination from the beginning"
			case "min", "max", "gte", "lte":
				return fmt.Sprintf("VALIDATION_ERROR: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
			case "oneof":
				return fmt.Sprintf("VALIDATION_ERROR: %s must be one of: %s", field, fe.Param())
			}
			return fmt.Sprintf("VALIDATION_ERROR: invalid %s", field)
		}
		return "VALIDATION_ERROR: invalid inputs"
	}
	return ""
}
