package store

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/strftime"
)

// backupNamePattern produces aaeq-bkup_YYYYMMDD_HHMMSS.zip.
const backupNamePattern = "aaeq-bkup_%Y%m%d_%H%M%S.zip"

// BackupName returns the conventional backup file name for the given
// timestamp.
func BackupName(t time.Time) string {
	name, err := strftime.Format(backupNamePattern, t)
	if err != nil {
		// backupNamePattern is a fixed, valid format string; this branch
		// is unreachable in practice.
		return fmt.Sprintf("aaeq-bkup_%d.zip", t.Unix())
	}
	return name
}

// Backup archives dbPath into a zip file named per BackupName, placed in
// destDir, containing a single deflate-compressed entry "aaeq.db". It
// returns the path to the created archive and its size in bytes.
func Backup(dbPath, destDir string, now time.Time) (string, int64, error) {
	archivePath := filepath.Join(destDir, BackupName(now))

	src, err := os.Open(dbPath)
	if err != nil {
		return "", 0, fmt.Errorf("store: open db for backup: %w", err)
	}
	defer src.Close()

	out, err := os.Create(archivePath)
	if err != nil {
		return "", 0, fmt.Errorf("store: create backup archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "aaeq.db",
		Method: zip.Deflate,
	})
	if err != nil {
		zw.Close()
		return "", 0, fmt.Errorf("store: create zip entry: %w", err)
	}
	if _, err := io.Copy(entry, src); err != nil {
		zw.Close()
		return "", 0, fmt.Errorf("store: write zip entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", 0, fmt.Errorf("store: finalize zip archive: %w", err)
	}

	info, err := out.Stat()
	if err != nil {
		return archivePath, 0, nil
	}
	return archivePath, info.Size(), nil
}
