package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func withClock(t *testing.T, start time.Time) func() {
	t.Helper()
	orig := now
	current := start
	now = func() time.Time {
		current = current.Add(time.Second)
		return current
	}
	return func() { now = orig }
}

func TestBackupFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "kbi.yaml")

	t.Run("no file exists", func(t *testing.T) {
		backupPath, err := BackupFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backupPath != "" {
			t.Errorf("expected empty backup path for missing file, got %s", backupPath)
		}
	})

	t.Run("backup existing file", func(t *testing.T) {
		testContent := "version: 1\noutput:\n  file: out.mm\n"
		if err := os.WriteFile(path, []byte(testContent), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		backupPath, err := BackupFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backupPath == "" {
			t.Fatal("expected non-empty backup path")
		}

		backupContent, err := os.ReadFile(backupPath)
		if err != nil {
			t.Fatalf("failed to read backup: %v", err)
		}
		if string(backupContent) != testContent {
			t.Errorf("backup content mismatch:\ngot: %s\nwant: %s", backupContent, testContent)
		}
	})
}

func TestBackupFile_PrunesOldBackups(t *testing.T) {
	defer withClock(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "kbi.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	var last string
	for i := 0; i < MaxBackups+2; i++ {
		p, err := BackupFile(path)
		if err != nil {
			t.Fatalf("backup %d failed: %v", i, err)
		}
		last = p
	}

	backups, err := ListBackups(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backups) != MaxBackups {
		t.Fatalf("expected %d backups, got %d: %v", MaxBackups, len(backups), backups)
	}
	if backups[0] != last {
		t.Errorf("expected newest backup first, got %s want %s", backups[0], last)
	}
}

func TestListBackups_MissingDirectory(t *testing.T) {
	backups, err := ListBackups(filepath.Join(t.TempDir(), "nope", "kbi.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("expected no backups, got %v", backups)
	}
}

func TestRestoreBackup(t *testing.T) {
	defer withClock(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "kbi.yaml")
	original := "version: 1\n"
	if err := os.WriteFile(path, []byte(original), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	backupPath, err := BackupFile(path)
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("version: 2\n"), 0644); err != nil {
		t.Fatalf("failed to modify config: %v", err)
	}

	if err := RestoreBackup(path, backupPath); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read restored config: %v", err)
	}
	if string(data) != original {
		t.Errorf("restored content mismatch: got %q want %q", data, original)
	}

	backups, _ := ListBackups(path)
	if len(backups) != 2 {
		t.Errorf("expected the modified file to be backed up too, got %v", backups)
	}
}

func TestRestoreBackup_MissingBackup(t *testing.T) {
	err := RestoreBackup(filepath.Join(t.TempDir(), "kbi.yaml"), "/does/not/exist.bak")
	if err == nil {
		t.Fatal("expected error for missing backup")
	}
}
