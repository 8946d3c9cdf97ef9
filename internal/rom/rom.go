// Package rom reads and validates CHIP-8 program images.
package rom

import (
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrEmpty    = errors.New("rom image is empty")
	ErrTooLarge = errors.New("rom image does not fit in program memory")
)

// Image is a program as loaded from disk or memory. Data is never modified.
type Image struct {
	Name  string // file name or caller supplied label
	Path  string // empty for in-memory images
	Data  []byte
	CRC32 uint32
}

func New(name string, data []byte) *Image {
	return &Image{Name: name, Data: data, CRC32: crc32.ChecksumIEEE(data)}
}

// Load reads the file at path.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rom: %w", err)
	}
	img := New(filepath.Base(path), data)
	img.Path = path
	return img, nil
}

// Size returns the image length in bytes.
func (i *Image) Size() int { return len(i.Data) }

// Validate checks the image against the number of bytes available from the
// program start address to the end of memory.
func (i *Image) Validate(capacity int) error {
	if len(i.Data) == 0 {
		return ErrEmpty
	}
	if len(i.Data) > capacity {
		return fmt.Errorf("%w: %d bytes, %d available", ErrTooLarge, len(i.Data), capacity)
	}
	return nil
}

// Title is the file name without extension, used for window titles and
// screenshot names.
func (i *Image) Title() string {
	name := i.Name
	if name == "" {
		return "untitled"
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// IsROMFile reports whether the file name carries a CHIP-8 program extension.
func IsROMFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ch8", ".c8":
		return true
	}
	return false
}

// Find walks dir and returns every program file below it, sorted.
func Find(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if IsROMFile(d.Name()) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}
