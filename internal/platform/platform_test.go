package platform

import (
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestContextMenuKeyPath(t *testing.T) {
	got := contextMenuKeyPath("png")
	want := `Software\Classes\SystemFileAssociations\.png\shell\TinyImage`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestContextMenuCommand(t *testing.T) {
	got := contextMenuCommand(`C:\Program Files\TinyImage\TinyImage.exe`)
	want := `"C:\Program Files\TinyImage\TinyImage.exe" --compress "%1"`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestLegacyWorkflowDirs(t *testing.T) {
	dirs := legacyWorkflowDirs("/Users/me")
	if len(dirs) != 2 {
		t.Fatalf("expected 2 legacy workflows, got %d", len(dirs))
	}
	for _, d := range dirs {
		if !strings.HasPrefix(d, filepath.Join("/Users/me", "Library", "Services")) || !strings.HasSuffix(d, ".workflow") {
			t.Errorf("unexpected workflow path %s", d)
		}
	}
}

func TestNopShell(t *testing.T) {
	var s Shell = NopShell{}
	if err := s.HideDockIcon(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := s.RegisterContextMenu(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if err := s.UnregisterContextMenu(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewReturnsShell(t *testing.T) {
	if New(nil) == nil {
		t.Fatal("expected a shell for the running OS")
	}
}

func TestContextMenuSupported(t *testing.T) {
	want := runtime.GOOS == "darwin" || runtime.GOOS == "windows"
	if got := ContextMenuSupported(); got != want {
		t.Errorf("ContextMenuSupported() = %v on %s", got, runtime.GOOS)
	}
}
