package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"control chars dropped", " A\nB\rC\tD\x00 ", 0, "ABCD"},
		{"allowed kept", "Az09 -_.,()", 0, "Az09 -_.,()"},
		{"disallowed replaced", "bad<>|\"name", 0, "bad____name"},
		{"truncated by rune", "éééééé", 3, "ééé"},
		{"trailing space after cut", "ab cd", 3, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("SanitizeName(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestValidateOutputDir(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateOutputDir(base); err != nil {
		t.Fatalf("ValidateOutputDir(%q) error = %v", base, err)
	}

	bad := []string{
		"",
		"   ",
		filepath.Join(base, "missing"),
		file,
		base + "/../" + filepath.Base(base),
		base + "/./",
	}
	for _, dir := range bad {
		if err := ValidateOutputDir(dir); !errors.Is(err, ErrBadOutputDir) {
			t.Errorf("ValidateOutputDir(%q) = %v, want ErrBadOutputDir", dir, err)
		}
	}
}
