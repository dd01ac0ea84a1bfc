// Package shm provides named shared-memory segments backed by files in
// /dev/shm (or the temp dir where /dev/shm is missing), mapped with mmap so
// the parent and the plugin host see the same pixels.
package shm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

const namePrefix = "mediaplug-"

var ErrBadName = errors.New("invalid segment name")

// Region is one mapped segment.
type Region struct {
	name string
	path string
	data []byte
}

// Dir returns the directory segments live in.
func Dir() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

func pathFor(name string) (string, error) {
	if !strings.HasPrefix(name, namePrefix) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return filepath.Join(Dir(), name), nil
}

// Create makes a new zeroed segment of size bytes under a fresh name.
func Create(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("create segment: size %d", size)
	}
	name := namePrefix + uuid.NewString()
	path, err := pathFor(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("size segment: %w", err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("mmap segment: %w", err)
	}
	return &Region{name: name, path: path, data: data}, nil
}

// Open maps an existing segment created by another process.
func Open(name string, size int) (*Region, error) {
	path, err := pathFor(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open segment: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment: %w", err)
	}
	if fi.Size() < int64(size) {
		return nil, fmt.Errorf("segment %s is %d bytes, want %d", name, fi.Size(), size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap segment: %w", err)
	}
	return &Region{name: name, path: path, data: data}, nil
}

func (r *Region) Name() string  { return r.name }
func (r *Region) Size() int     { return len(r.data) }
func (r *Region) Bytes() []byte { return r.data }

// Clear zero-fills the region.
func (r *Region) Clear() {
	clear(r.data)
}

// Close unmaps the region. The segment itself survives until Destroy.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}

// Destroy unmaps the region and removes the segment.
func (r *Region) Destroy() error {
	err := r.Close()
	if rmErr := os.Remove(r.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}
