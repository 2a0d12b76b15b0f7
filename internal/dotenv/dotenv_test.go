package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := `
# comment
CHORUS_TEST_PLAIN=value
export CHORUS_TEST_EXPORT=exported
CHORUS_TEST_QUOTED="with spaces"
CHORUS_TEST_SINGLE='single'
CHORUS_TEST_EXISTING=from-file
=no-key
not-a-pair
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CHORUS_TEST_EXISTING", "from-env")
	for _, key := range []string{"CHORUS_TEST_PLAIN", "CHORUS_TEST_EXPORT", "CHORUS_TEST_QUOTED", "CHORUS_TEST_SINGLE"} {
		os.Unsetenv(key)
		t.Cleanup(func() { os.Unsetenv(key) })
	}

	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	tests := map[string]string{
		"CHORUS_TEST_PLAIN":    "value",
		"CHORUS_TEST_EXPORT":   "exported",
		"CHORUS_TEST_QUOTED":   "with spaces",
		"CHORUS_TEST_SINGLE":   "single",
		"CHORUS_TEST_EXISTING": "from-env", // environment wins
	}
	for key, want := range tests {
		if got := os.Getenv(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestLoadFileMissingIsNoop(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("LoadFile: %v", err)
	}
}
