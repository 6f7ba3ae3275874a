package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LeoCommon/odometer/pkg/file"
	"github.com/LeoCommon/odometer/pkg/log"
	"go.uber.org/zap"
)

var ErrInvalidName = errors.New("invalid file name")

// Dir stores the odometer files in a single directory
type Dir struct {
	path string

	// Appended files are archived and restarted once they would grow past this, 0 disables
	maxLogSize int
	now        func() time.Time
}

type Option func(*Dir)

func WithMaxLogSize(bytes int) Option {
	return func(d *Dir) {
		d.maxLogSize = bytes
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dir) {
		d.now = now
	}
}

// Open creates the directory if needed
func Open(path string, opts ...Option) (*Dir, error) {
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	if err := file.IsDir(path); err != nil {
		return nil, err
	}

	d := &Dir{path: path, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

func (d *Dir) Path() string {
	return d.path
}

func (d *Dir) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.path, name), nil
}

// Read returns the content of name, an error matching os.ErrNotExist if it was never written
func (d *Dir) Read(name string) ([]byte, error) {
	p, err := d.resolve(name)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(p)
}

func (d *Dir) Write(name string, data []byte) error {
	p, err := d.resolve(name)
	if err != nil {
		return err
	}

	return file.WriteAtomic(p, data)
}

func (d *Dir) Append(name string, data []byte) error {
	p, err := d.resolve(name)
	if err != nil {
		return err
	}

	if d.maxLogSize > 0 {
		if size, err := file.GetFileSize(p); err == nil && size+len(data) > d.maxLogSize {
			if err := d.rotate(p); err != nil {
				// The record is still appended to the unrotated file
				log.Warn("could not rotate file", zap.String("file", p), zap.Error(err))
			}
		}
	}

	return file.AppendTo(p, data)
}

// rotate moves the file into a timestamped zip archive next to it
func (d *Dir) rotate(p string) error {
	ext := filepath.Ext(p)
	archive := fmt.Sprintf("%s-%s.zip", strings.TrimSuffix(p, ext), d.now().UTC().Format("20060102T150405Z"))

	if err := file.CreateArchive(archive, []string{p}); err != nil {
		_ = os.Remove(archive)
		return err
	}

	log.Info("archived file", zap.String("file", p), zap.String("archive", archive))
	return os.Remove(p)
}
