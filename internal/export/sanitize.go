package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var ErrBadOutputDir = errors.New("invalid output_dir")

// SanitizeName keeps letters, digits and a little punctuation, replacing
// anything else with '_' and dropping control characters. maxLen counts runes.
func SanitizeName(s string, maxLen int) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune(" -_.,()", r):
			return r
		default:
			return '_'
		}
	}, s))

	if runes := []rune(cleaned); maxLen > 0 && len(runes) > maxLen {
		cleaned = strings.TrimSpace(string(runes[:maxLen]))
	}
	return cleaned
}

// ValidateOutputDir accepts only an existing, already clean directory path
// with no ".." element.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: empty path", ErrBadOutputDir)
	}
	if strings.Contains("/"+filepath.ToSlash(dir)+"/", "/../") {
		return fmt.Errorf("%w: path traversal", ErrBadOutputDir)
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("%w: path is not clean", ErrBadOutputDir)
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s does not exist", ErrBadOutputDir, dir)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrBadOutputDir, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s is not a directory", ErrBadOutputDir, dir)
	}
	return nil
}
