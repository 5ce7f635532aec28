package images

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"agrodetect/models"

	"github.com/apex/log"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// SubDir is where plant images are stored below the upload root.
	SubDir = "plant_images"
	// URLPrefix is the route the upload root is served under.
	URLPrefix = "/uploads"
)

// Image is a stored upload.
type Image struct {
	Path        string
	URL         string
	ContentType string
}

// Store writes images under <root>/plant_images.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates the image directory if needed.
func NewStore(root string) (*Store, error) {
	dir := filepath.Join(root, SubDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (s *Store) fileName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	base = unsafeName.ReplaceAllString(base, "_")
	if base == "" || base == "." || base == "_" {
		base = "image"
	}
	return fmt.Sprintf("%d-%s-%s", s.now().UnixMilli(), uuid.NewString()[:8], base)
}

// Save stores an uploaded file. Anything that does not sniff as an image is rejected.
func (s *Store) Save(name string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, models.NewValidationError("Image file is empty")
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, models.NewValidationError(fmt.Sprintf("Unsupported image type: %s", mt.String()))
	}
	return s.write(s.fileName(name), data, mt.String())
}

var dataURIPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// SaveBase64 stores a base64 frame sent by an ESP camera, with or without a data URI prefix.
func (s *Store) SaveBase64(payload string) (*Image, error) {
	encoded := dataURIPrefix.ReplaceAllString(strings.TrimSpace(payload), "")
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, models.NewValidationError("image_base64 is not valid base64")
	}
	if len(data) == 0 {
		return nil, models.NewValidationError("image_base64 is required")
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, models.NewValidationError(fmt.Sprintf("Unsupported image type: %s", mt.String()))
	}
	return s.write(s.fileName("esp.jpg"), data, mt.String())
}

func (s *Store) write(name string, data []byte, contentType string) (*Image, error) {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}
	return &Image{
		Path:        path,
		URL:         URLPrefix + "/" + SubDir + "/" + name,
		ContentType: contentType,
	}, nil
}

// Remove deletes a stored image. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warnf("Failed to remove image %s", path)
		return err
	}
	return nil
}
