package ports

import (
	"io"
	"io/fs"
)

// FileSystem is the slice of the os package used for config files,
// recordings and working-directory checks.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	Stat(name string) (fs.FileInfo, error)
	// OpenFile takes os.O_* flags.
	OpenFile(name string, flag int, perm fs.FileMode) (FileHandle, error)
	MkdirAll(path string, perm fs.FileMode) error
	Remove(name string) error
	Rename(oldpath, newpath string) error

	UserHomeDir() (string, error)
	Getenv(key string) string
}

// FileHandle is an open file that is only written to.
type FileHandle interface {
	io.WriteCloser
	Name() string
}
