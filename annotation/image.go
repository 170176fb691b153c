package annotation

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"regexp"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ReadImageFile reads a screenshot from disk, returning its bytes and format
// once the header proves it is an image this package can decode
func ReadImageFile(filepath string) ([]byte, string, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, "", err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("while reading image '%s': %w", filepath, err)
	}
	return data, format, nil
}

var sha256Pattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ImageStore keeps uploaded screenshots addressed by the SHA-256 of their
// encoded bytes, fanned out into folders named by the first two hex digits.
type ImageStore struct {
	fs billy.Filesystem
}

func NewImageStore(fs billy.Filesystem) *ImageStore {
	return &ImageStore{fs: fs}
}

// OpenImageStore creates an ImageStore rooted at dir on disk
func OpenImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("while creating images folder '%s': %w", dir, err)
	}
	return NewImageStore(osfs.New(dir)), nil
}

func (s *ImageStore) path(sha string) string {
	return s.fs.Join(sha[:2], sha)
}

// Put stores data and returns its hash. Storing the same bytes twice is a
// no-op.
func (s *ImageStore) Put(data []byte) (string, error) {
	sha := HashBytes(data)
	target := s.path(sha)
	if _, err := s.fs.Stat(target); err == nil {
		return sha, nil
	}
	if err := s.fs.MkdirAll(sha[:2], 0755); err != nil {
		return "", fmt.Errorf("while creating image folder: %w", err)
	}
	tmp, err := s.fs.TempFile(sha[:2], "upload-")
	if err != nil {
		return "", fmt.Errorf("while creating temporary image file: %w", err)
	}
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.fs.Remove(tmp.Name())
		return "", fmt.Errorf("while writing image %s: %w", sha, err)
	}
	if err := s.fs.Rename(tmp.Name(), target); err != nil {
		s.fs.Remove(tmp.Name())
		return "", fmt.Errorf("while storing image %s: %w", sha, err)
	}
	return sha, nil
}

// Get returns the bytes stored under sha
func (s *ImageStore) Get(sha string) ([]byte, error) {
	if !sha256Pattern.MatchString(sha) {
		return nil, fmt.Errorf("invalid image hash %q", sha)
	}
	f, err := s.fs.Open(s.path(sha))
	if err != nil {
		return nil, fmt.Errorf("while opening image %s: %w", sha, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ExportStore receives the flattened composites handed out for upload
type ExportStore struct {
	fs billy.Filesystem
}

func NewExportStore(fs billy.Filesystem) *ExportStore {
	return &ExportStore{fs: fs}
}

// OpenExportStore creates an ExportStore rooted at dir on disk
func OpenExportStore(dir string) (*ExportStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("while creating exports folder '%s': %w", dir, err)
	}
	return NewExportStore(osfs.New(dir)), nil
}

// WriteComposite saves encoded PNG bytes as <name>.png, replacing any
// previous export of the same name, and returns the file name
func (s *ExportStore) WriteComposite(name string, data []byte) (string, error) {
	filename := name + ".png"
	f, err := s.fs.Create(filename)
	if err != nil {
		return "", fmt.Errorf("while creating export '%s': %w", filename, err)
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("while writing export '%s': %w", filename, err)
	}
	return filename, nil
}
