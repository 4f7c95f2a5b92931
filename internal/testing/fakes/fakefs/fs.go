// Package fakefs is an in-memory ports.FileSystem for tests.
package fakefs

import (
	"io/fs"
	"maps"
	"os"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/acolita/termengine/internal/ports"
)

var (
	_ ports.FileSystem = (*FS)(nil)
	_ ports.FileHandle = (*handle)(nil)
	_ fs.FileInfo      = info{}
)

// FS keeps files and directories in one map keyed by cleaned slash path.
// Directories have a nil data slice and dir set.
type FS struct {
	mu      sync.Mutex
	nodes   map[string]*node
	home    string
	env     map[string]string
	openErr error
}

type node struct {
	dir     bool
	data    []byte
	mode    fs.FileMode
	modTime time.Time
}

// New returns a filesystem holding only "/". The home directory is
// /home/test and the environment is empty.
func New() *FS {
	return &FS{
		nodes: map[string]*node{"/": {dir: true, mode: fs.ModeDir | 0755}},
		home:  "/home/test",
		env:   map[string]string{},
	}
}

func clean(name string) string {
	return path.Clean("/" + name)
}

func pathErr(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// mkdirs creates dir and its parents. mu must be held.
func (f *FS) mkdirs(dir string) {
	for ; ; dir = path.Dir(dir) {
		if _, ok := f.nodes[dir]; !ok {
			f.nodes[dir] = &node{dir: true, mode: fs.ModeDir | 0755, modTime: time.Now()}
		}
		if dir == "/" {
			return
		}
	}
}

func (f *FS) file(name string) (*node, bool) {
	n, ok := f.nodes[name]
	return n, ok && !n.dir
}

func (f *FS) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = clean(name)
	n, ok := f.file(name)
	if !ok {
		return nil, pathErr("open", name, fs.ErrNotExist)
	}
	return slices.Clone(n.data), nil
}

// WriteFile replaces name, creating missing parent directories.
func (f *FS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	f.AddFile(name, data, perm)
	return nil
}

func (f *FS) Stat(name string) (fs.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = clean(name)
	n, ok := f.nodes[name]
	if !ok {
		return nil, pathErr("stat", name, fs.ErrNotExist)
	}
	return info{name: path.Base(name), n: *n}, nil
}

// OpenFile honors O_CREATE, O_EXCL and O_TRUNC. Writes always append.
func (f *FS) OpenFile(name string, flag int, perm fs.FileMode) (ports.FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = clean(name)
	if f.openErr != nil {
		return nil, pathErr("open", name, f.openErr)
	}

	n, exists := f.nodes[name]
	create := flag&os.O_CREATE != 0
	switch {
	case exists && n.dir:
		return nil, pathErr("open", name, fs.ErrInvalid)
	case exists && create && flag&os.O_EXCL != 0:
		return nil, pathErr("open", name, fs.ErrExist)
	case exists && flag&os.O_TRUNC != 0:
		n.data = nil
	case !exists && !create:
		return nil, pathErr("open", name, fs.ErrNotExist)
	case !exists:
		if parent, ok := f.nodes[path.Dir(name)]; !ok || !parent.dir {
			return nil, pathErr("open", name, fs.ErrNotExist)
		}
		n = &node{mode: perm, modTime: time.Now()}
		f.nodes[name] = n
	}
	return &handle{fs: f, name: name, n: n}, nil
}

func (f *FS) MkdirAll(dir string, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirs(clean(dir))
	return nil
}

// Remove deletes a file or an empty directory.
func (f *FS) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = clean(name)
	n, ok := f.nodes[name]
	if !ok {
		return pathErr("remove", name, fs.ErrNotExist)
	}
	if n.dir {
		prefix := strings.TrimSuffix(name, "/") + "/"
		for p := range f.nodes {
			if strings.HasPrefix(p, prefix) {
				return pathErr("remove", name, fs.ErrInvalid)
			}
		}
	}
	delete(f.nodes, name)
	return nil
}

// Rename moves a file, replacing any file at newpath.
func (f *FS) Rename(oldpath, newpath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	oldpath, newpath = clean(oldpath), clean(newpath)
	n, ok := f.file(oldpath)
	if !ok {
		return pathErr("rename", oldpath, fs.ErrNotExist)
	}
	if dst, ok := f.nodes[newpath]; ok && dst.dir {
		return pathErr("rename", newpath, fs.ErrExist)
	}
	f.nodes[newpath] = n
	delete(f.nodes, oldpath)
	return nil
}

func (f *FS) UserHomeDir() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.home, nil
}

func (f *FS) Getenv(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.env[key]
}

// AddFile stores a file, creating missing parent directories.
func (f *FS) AddFile(name string, data []byte, mode fs.FileMode) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = clean(name)
	f.mkdirs(path.Dir(name))
	f.nodes[name] = &node{data: slices.Clone(data), mode: mode, modTime: time.Now()}
}

func (f *FS) SetHomeDir(dir string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.home = dir
}

func (f *FS) SetEnv(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.env[key] = value
}

// FailOpen makes OpenFile fail with err until called again with nil.
func (f *FS) FailOpen(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

// Files lists file paths in sorted order. Directories are left out.
func (f *FS) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, p := range slices.Sorted(maps.Keys(f.nodes)) {
		if !f.nodes[p].dir {
			out = append(out, p)
		}
	}
	return out
}

type handle struct {
	fs     *FS
	name   string
	n      *node
	closed bool
}

func (h *handle) Write(p []byte) (int, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	if h.closed {
		return 0, pathErr("write", h.name, fs.ErrClosed)
	}
	h.n.data = append(h.n.data, p...)
	h.n.modTime = time.Now()
	return len(p), nil
}

func (h *handle) Close() error {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	if h.closed {
		return pathErr("close", h.name, fs.ErrClosed)
	}
	h.closed = true
	return nil
}

func (h *handle) Name() string { return h.name }

type info struct {
	name string
	n    node
}

func (i info) Name() string       { return i.name }
func (i info) Size() int64        { return int64(len(i.n.data)) }
func (i info) ModTime() time.Time { return i.n.modTime }
func (i info) IsDir() bool        { return i.n.dir }
func (i info) Sys() any           { return nil }

func (i info) Mode() fs.FileMode {
	if i.n.dir {
		return fs.ModeDir | i.n.mode.Perm()
	}
	return i.n.mode
}
