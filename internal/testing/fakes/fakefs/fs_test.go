package fakefs

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"testing"
)

func TestFS_WriteRead(t *testing.T) {
	f := New()
	data := []byte("rows: 24")
	if err := f.WriteFile("/etc/app/config.yaml", data, 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	data[0] = 'X'

	got, err := f.ReadFile("/etc/app/../app/config.yaml")
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(got) != "rows: 24" {
		t.Errorf("ReadFile() = %q, want the bytes as written", got)
	}

	fi, err := f.Stat("/etc/app")
	if err != nil || !fi.IsDir() {
		t.Errorf("parent directory not created: %v %v", fi, err)
	}
	if _, err := f.ReadFile("/etc/app"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile(dir) = %v, want ErrNotExist", err)
	}
}

func TestFS_Stat(t *testing.T) {
	f := New()
	f.AddFile("/work/notes.txt", []byte("hello"), 0600)

	fi, err := f.Stat("/work/notes.txt")
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if fi.Name() != "notes.txt" || fi.Size() != 5 || fi.IsDir() || fi.Mode() != 0600 {
		t.Errorf("Stat() = %s %d %v %v", fi.Name(), fi.Size(), fi.IsDir(), fi.Mode())
	}
	if _, err := f.Stat("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat(missing) = %v, want ErrNotExist", err)
	}
}

func TestFS_OpenFile(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		flag    int
		wantErr error
	}{
		{"create", "/rec/new.cast", os.O_CREATE | os.O_WRONLY, nil},
		{"create exclusive on existing", "/rec/old.cast", os.O_CREATE | os.O_EXCL | os.O_WRONLY, fs.ErrExist},
		{"open missing", "/rec/none.cast", os.O_WRONLY, fs.ErrNotExist},
		{"parent missing", "/nope/a.cast", os.O_CREATE | os.O_WRONLY, fs.ErrNotExist},
		{"directory", "/rec", os.O_WRONLY, fs.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New()
			f.AddFile("/rec/old.cast", []byte("x"), 0600)

			h, err := f.OpenFile(tt.path, tt.flag, 0600)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("OpenFile() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil {
				h.Close()
			}
		})
	}
}

func TestFS_HandleAppends(t *testing.T) {
	f := New()
	f.AddFile("/rec/a.cast", []byte("head\n"), 0600)

	h, err := f.OpenFile("/rec/a.cast", os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatalf("OpenFile() error: %v", err)
	}
	if h.Name() != "/rec/a.cast" {
		t.Errorf("Name() = %q", h.Name())
	}
	h.Write([]byte("one\n"))
	h.Write([]byte("two\n"))
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if got, _ := f.ReadFile("/rec/a.cast"); string(got) != "head\none\ntwo\n" {
		t.Errorf("contents = %q", got)
	}
	if _, err := h.Write([]byte("late")); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
	if err := h.Close(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
}

func TestFS_Truncate(t *testing.T) {
	f := New()
	f.AddFile("/a", []byte("old"), 0644)

	h, err := f.OpenFile("/a", os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		t.Fatalf("OpenFile() error: %v", err)
	}
	h.Write([]byte("new"))
	h.Close()

	if got, _ := f.ReadFile("/a"); string(got) != "new" {
		t.Errorf("contents = %q, want new", got)
	}
}

func TestFS_FailOpen(t *testing.T) {
	f := New()
	boom := errors.New("disk gone")
	f.FailOpen(boom)
	if _, err := f.OpenFile("/a", os.O_CREATE|os.O_WRONLY, 0600); !errors.Is(err, boom) {
		t.Errorf("OpenFile() = %v, want %v", err, boom)
	}

	f.FailOpen(nil)
	if _, err := f.OpenFile("/a", os.O_CREATE|os.O_WRONLY, 0600); err != nil {
		t.Errorf("OpenFile() after clearing = %v", err)
	}
}

func TestFS_RemoveRename(t *testing.T) {
	f := New()
	f.AddFile("/cfg/config.yaml.tmp", []byte("a"), 0644)
	f.MkdirAll("/cfg/empty", 0755)

	if err := f.Remove("/cfg"); !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("Remove(non-empty dir) = %v, want ErrInvalid", err)
	}
	if err := f.Remove("/cfg/empty"); err != nil {
		t.Errorf("Remove(empty dir) = %v", err)
	}
	if err := f.Remove("/cfg/none"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Remove(missing) = %v, want ErrNotExist", err)
	}

	if err := f.Rename("/cfg/config.yaml.tmp", "/cfg/config.yaml"); err != nil {
		t.Fatalf("Rename() error: %v", err)
	}
	if got := f.Files(); !slices.Equal(got, []string{"/cfg/config.yaml"}) {
		t.Errorf("Files() = %q", got)
	}
	if err := f.Rename("/cfg/missing", "/cfg/x"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Rename(missing) = %v, want ErrNotExist", err)
	}
	if err := f.Rename("/cfg/config.yaml", "/"); !errors.Is(err, fs.ErrExist) {
		t.Errorf("Rename(onto dir) = %v, want ErrExist", err)
	}
}

func TestFS_Environment(t *testing.T) {
	f := New()
	if home, _ := f.UserHomeDir(); home != "/home/test" {
		t.Errorf("UserHomeDir() = %q", home)
	}
	f.SetHomeDir("/home/ana")
	f.SetEnv("XDG_CONFIG_HOME", "/xdg")

	if home, _ := f.UserHomeDir(); home != "/home/ana" {
		t.Errorf("UserHomeDir() = %q", home)
	}
	if got := f.Getenv("XDG_CONFIG_HOME"); got != "/xdg" {
		t.Errorf("Getenv() = %q", got)
	}
	if got := f.Getenv("UNSET"); got != "" {
		t.Errorf("Getenv(unset) = %q", got)
	}
}

func TestFS_FilesSorted(t *testing.T) {
	f := New()
	for _, p := range []string{"/b/2", "/a/1", "/b/1"} {
		f.AddFile(p, nil, 0644)
	}
	if got := f.Files(); !slices.Equal(got, []string{"/a/1", "/b/1", "/b/2"}) {
		t.Errorf("Files() = %q", got)
	}
}
