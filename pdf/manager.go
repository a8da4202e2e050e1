// Package pdf turns template output into filesystem moves: it names the
// destination for a source PDF from an evaluated template and relocates
// the file there, and it walks the intake folder handing out PDFs one at
// a time.
package pdf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sokoine/go-docsort/core/template"
)

// Manager moves PDFs and tracks a round-robin cursor over the source
// folder. The folder listing is cached for a short refresh interval so
// stepping through files does not hammer a network share.
type Manager struct {
	logger *zap.Logger

	mu          sync.Mutex
	folder      string
	files       []string
	cursor      int
	lastRefresh time.Time

	refreshInterval time.Duration
	maxRetries      int
	retryDelay      time.Duration
}

// NewManager builds a Manager. A nil logger disables logging.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:          logger,
		cursor:          -1,
		refreshInterval: 5 * time.Second,
		maxRetries:      3,
		retryDelay:      time.Second,
	}
}

// BuildOutputPath evaluates the template against the row and returns a
// cleaned filesystem path. String row values are sanitized before
// evaluation so a slash inside a cell cannot smuggle in an extra
// directory level; processed_folder is exempt because it legitimately
// carries separators. The rendered output is sanitized again segment by
// segment to catch characters introduced by template literals or date
// formats. Rows without a DATE FACTURE value get the current date so
// date-based templates keep working for undated records.
func BuildOutputPath(tpl *template.Template, row template.Row) (string, error) {
	work := make(template.Row, len(row)+1)
	for k, v := range row {
		if s, ok := v.(string); ok && k != "processed_folder" {
			work[k] = template.SanitizeSegment(s)
			continue
		}
		work[k] = v
	}
	if _, ok := work["DATE FACTURE"]; !ok {
		work["DATE FACTURE"] = time.Now()
	}

	rendered, err := template.Evaluate(tpl, work)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate output template: %w", err)
	}

	segments := strings.Split(filepath.ToSlash(rendered), "/")
	for i, seg := range segments {
		switch seg {
		case "", ".", "..":
			continue
		}
		segments[i] = template.SanitizeSegment(seg)
	}
	cleaned := filepath.Clean(filepath.FromSlash(strings.Join(segments, "/")))
	if cleaned == "." {
		return "", fmt.Errorf("output template rendered an empty path")
	}
	return cleaned, nil
}

// Process moves src to the path the template renders for row and returns
// that path. The source is first copied into a temporary directory so the
// original stays intact until the destination write succeeds; the move
// itself is a rename with a copy fallback for cross-device targets.
// Filesystem failures are retried with exponential backoff; template
// failures are not, since retrying cannot fix them.
func (m *Manager) Process(src string, tpl *template.Template, row template.Row) (string, error) {
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("source PDF not accessible: %w", err)
	}
	dest, err := BuildOutputPath(tpl, row)
	if err != nil {
		return "", err
	}

	delay := m.retryDelay
	for attempt := 1; ; attempt++ {
		err = m.moveOnce(src, dest)
		if err == nil {
			m.logger.Info("Processed PDF",
				zap.String("source", src),
				zap.String("destination", dest))
			m.invalidateListing()
			return dest, nil
		}
		if attempt >= m.maxRetries {
			return "", fmt.Errorf("failed to process PDF after %d attempts: %w", m.maxRetries, err)
		}
		m.logger.Warn("Retrying PDF move",
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(delay)
		delay *= 2
	}
}

func (m *Manager) moveOnce(src, dest string) error {
	tempDir, err := os.MkdirTemp("", "docsort-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	staged := filepath.Join(tempDir, "original.pdf")
	if err := copyFile(src, staged); err != nil {
		return fmt.Errorf("failed to stage source PDF: %w", err)
	}

	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create destination directory: %w", err)
		}
	}
	if err := moveFile(staged, dest); err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to move PDF into place: %w", err)
	}
	if err := os.Remove(src); err != nil {
		// The destination is already written; undo it so a retry starts
		// from a consistent state with the source still present.
		os.Remove(dest)
		return fmt.Errorf("failed to remove source PDF: %w", err)
	}
	return nil
}

// NextPDF returns the next PDF in the source folder, cycling back to the
// first after the last. The listing refreshes when the folder changes or
// the refresh interval has elapsed. An empty folder yields "".
func (m *Manager) NextPDF(sourceFolder string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if sourceFolder != m.folder || now.Sub(m.lastRefresh) > m.refreshInterval {
		entries, err := os.ReadDir(sourceFolder)
		if err != nil {
			return "", fmt.Errorf("failed to read source folder: %w", err)
		}
		var files []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
				files = append(files, entry.Name())
			}
		}
		sort.Strings(files)
		if sourceFolder != m.folder {
			m.cursor = -1
		}
		m.folder = sourceFolder
		m.files = files
		m.lastRefresh = now
		m.logger.Debug("Refreshed source folder listing",
			zap.String("folder", sourceFolder),
			zap.Int("files", len(files)))
	}

	if len(m.files) == 0 {
		return "", nil
	}
	m.cursor++
	if m.cursor >= len(m.files) {
		m.cursor = 0
	}
	return filepath.Join(m.folder, m.files[m.cursor]), nil
}

// Restore moves a processed PDF back to its original location, used when
// undoing a completed task. The move follows the same rename-with-copy
// semantics as Process.
func (m *Manager) Restore(processed, original string) error {
	if dir := filepath.Dir(original); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to recreate source directory: %w", err)
		}
	}
	if err := moveFile(processed, original); err != nil {
		return fmt.Errorf("failed to restore PDF: %w", err)
	}
	m.invalidateListing()
	m.logger.Info("Restored PDF",
		zap.String("from", processed),
		zap.String("to", original))
	return nil
}

// invalidateListing forces the next NextPDF call to reread the folder, so
// a just-processed file disappears from the rotation immediately.
func (m *Manager) invalidateListing() {
	m.mu.Lock()
	m.lastRefresh = time.Time{}
	m.mu.Unlock()
}

func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	// Rename fails across devices; fall back to copy and delete.
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
