// Package images reads schedule screenshots from disk, uploads, data URLs and
// remote URLs. Anything that is not an image is dropped.
package images

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coursesnap/coursesnap/internal/models"
)

// MaxImageSize is the largest accepted image, in bytes
const MaxImageSize = 10 * 1024 * 1024

var (
	ErrNotImage = errors.New("not an image")
	ErrTooLarge = fmt.Errorf("image too large (max %dMB)", MaxImageSize/1024/1024)
)

// Formats that content sniffing does not recognise.
var extensionTypes = map[string]string{
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// Sniff reports the MIME type of data and whether it is an image. name is
// only consulted when the content itself is not recognised.
func Sniff(name string, data []byte) (string, bool) {
	mimeType := http.DetectContentType(data)
	if strings.HasPrefix(mimeType, "image/") {
		return mimeType, true
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok && len(data) > 0 {
		return t, true
	}
	return mimeType, false
}

// FromBytes validates raw upload data and wraps it as an Image
func FromBytes(name string, data []byte) (models.Image, error) {
	if len(data) > MaxImageSize {
		return models.Image{}, ErrTooLarge
	}
	if _, ok := Sniff(name, data); !ok {
		return models.Image{}, fmt.Errorf("%s: %w", name, ErrNotImage)
	}
	return models.Image{Name: name, Data: data}, nil
}

// FromDataURL decodes a browser data URL ("data:image/png;base64,...") or a
// bare base64 string.
func FromDataURL(name, s string) (models.Image, error) {
	payload := strings.TrimSpace(s)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return models.Image{}, fmt.Errorf("%s: malformed data URL", name)
		}
		header := payload[len("data:"):comma]
		if !strings.HasPrefix(header, "image/") {
			return models.Image{}, fmt.Errorf("%s: %w", name, ErrNotImage)
		}
		if !strings.HasSuffix(header, ";base64") {
			return models.Image{}, fmt.Errorf("%s: data URL is not base64 encoded", name)
		}
		payload = payload[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return models.Image{}, fmt.Errorf("%s: invalid base64 payload: %w", name, err)
	}
	return FromBytes(name, data)
}

// ReadUpload reads at most MaxImageSize bytes from an uploaded file
func ReadUpload(name string, r io.Reader) (models.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return models.Image{}, fmt.Errorf("failed to read file contents: %w", err)
	}
	return FromBytes(name, data)
}

// Load reads one image file from disk
func Load(path string) (models.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Image{}, err
	}
	if info.Size() > MaxImageSize {
		return models.Image{}, fmt.Errorf("%s: %w", path, ErrTooLarge)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	return FromBytes(filepath.Base(path), data)
}

// Collect loads every image named by paths. Directories are walked
// recursively in lexical order; non-image files are skipped silently.
func Collect(paths []string) ([]models.Image, error) {
	var out []models.Image
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			img, err := Load(p)
			if errors.Is(err, ErrNotImage) {
				slog.Debug("Skipping non-image file", "path", p)
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, img)
			continue
		}

		var files []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, f := range files {
			img, err := Load(f)
			if errors.Is(err, ErrNotImage) || errors.Is(err, ErrTooLarge) {
				slog.Debug("Skipping file", "path", f, "reason", err)
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, img)
		}
	}
	return out, nil
}
