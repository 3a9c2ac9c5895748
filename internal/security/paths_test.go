package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	labs := filepath.Join(tmpDir, "labs")
	other := filepath.Join(tmpDir, "other")
	for _, d := range []string{labs, other} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}
	if err := os.WriteFile(filepath.Join(labs, "canonical.json"), []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to write lab: %v", err)
	}
	if err := os.Symlink(other, filepath.Join(labs, "linked")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{"existing lab", filepath.Join(labs, "canonical.json"), false},
		{"new file", filepath.Join(labs, "sydney.json"), false},
		{"nested new file", filepath.Join(labs, "a", "b.json"), false},
		{"parent traversal", filepath.Join(labs, "..", "other", "x.json"), true},
		{"relative escape", labs + "/../../etc/passwd", true},
		{"through symlink", filepath.Join(labs, "linked", "x.json"), true},
		{"the directory itself", labs, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, labs)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantError %v", tt.path, err, tt.wantError)
			}
		})
	}

	if err := ValidatePathWithinDirectory(filepath.Join(labs, "x.json"), filepath.Join(tmpDir, "missing")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestTrialName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Walk01", "Walk01"},
		{"Walk 01 (barefoot)", "Walk_01_barefoot"},
		{"../../etc/passwd", "etc_passwd"},
		{".hidden", "hidden"},
		{"S01/Walk02", "S01_Walk02"},
		{"", "trial"},
		{"///", "trial"},
		{"Gang_3-links.v2", "Gang_3-links.v2"},
	}
	for _, tt := range tests {
		if got := TrialName(tt.in); got != tt.want {
			t.Errorf("TrialName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	if got := TrialName(string(long)); len(got) != maxTrialName {
		t.Errorf("TrialName(long) length = %d, want %d", len(got), maxTrialName)
	}
}
