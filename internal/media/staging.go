package media

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StagedFile is an upload written to local disk, awaiting transfer.
type StagedFile struct {
	Path         string
	Field        string
	OriginalName string
	ContentType  string
	Size         int64
}

// Stager writes multipart parts into a local staging directory.
type Stager struct {
	Dir string
}

// NewStager ensures dir exists.
func NewStager(dir string) (*Stager, error) {
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Stager{Dir: dir}, nil
}

// Stage copies the uploaded part for field to <dir>/<field>-<uuid><ext>.
func (s *Stager) Stage(field string, header *multipart.FileHeader) (StagedFile, error) {
	src, err := header.Open()
	if err != nil {
		return StagedFile{}, fmt.Errorf("open upload %s: %w", field, err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(s.Dir, fmt.Sprintf("%s-%s%s", field, uuid.NewString(), ext))

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return StagedFile{}, fmt.Errorf("create staged file: %w", err)
	}

	written, err := io.Copy(dst, src)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return StagedFile{}, fmt.Errorf("write staged file: %w", err)
	}

	return StagedFile{
		Path:         path,
		Field:        field,
		OriginalName: header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         written,
	}, nil
}
