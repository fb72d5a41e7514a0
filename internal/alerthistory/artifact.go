package alerthistory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/sentinel-go/internal/errors"
)

// ArtifactStore persists and removes alert image artifacts.
type ArtifactStore interface {
	// Save writes the alert frame JPEG and returns a handle for later
	// deletion.
	Save(cameraID string, jpeg []byte) (string, error)
	// Delete removes a previously saved artifact.
	Delete(path string) error
}

// FileArtifactStore writes artifacts as JPEG files under a directory.
type FileArtifactStore struct {
	dir string
}

// NewFileArtifactStore creates the directory if needed.
func NewFileArtifactStore(dir string) (*FileArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("artifact-store").
			Category(errors.CategoryArtifact).
			Context("dir", dir).
			Build()
	}
	return &FileArtifactStore{dir: dir}, nil
}

// Save writes the frame under a timestamped unique name.
func (fs *FileArtifactStore) Save(cameraID string, jpeg []byte) (string, error) {
	name := fmt.Sprintf("alert_%s_%s_%s.jpg",
		cameraID,
		time.Now().Format("20060102_150405"),
		uuid.NewString()[:8])
	path := filepath.Join(fs.dir, name)

	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		return "", errors.New(err).
			Component("artifact-store").
			Category(errors.CategoryArtifact).
			Context("path", path).
			Build()
	}
	return path, nil
}

// Delete removes the artifact file. A missing file is not an error; the
// history metadata is authoritative, not the filesystem.
func (fs *FileArtifactStore) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New(err).
			Component("artifact-store").
			Category(errors.CategoryArtifact).
			Context("path", path).
			Build()
	}
	return nil
}
