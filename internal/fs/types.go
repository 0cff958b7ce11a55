// Package fs abstracts disk access behind the narrow surface bdmv discovery
// needs, so a BDMV root can come from a plain directory today and from a
// mounted disc image without touching the scanning code.
package fs

import (
	"io"
	"time"
)

// FileInfo describes a single file, regardless of backing store.
type FileInfo interface {
	Name() string
	FullName() string
	Length() int64
	Extension() string
	IsDirectory() bool
	ModTime() time.Time
	OpenRead() (io.ReadCloser, error)
}

// DirectoryInfo describes a directory, regardless of backing store.
type DirectoryInfo interface {
	Name() string
	FullName() string
	GetFiles() ([]FileInfo, error)
	GetDirectories() ([]DirectoryInfo, error)
	GetFilesPattern(pattern string) ([]FileInfo, error)
	GetDirectory(name string) (DirectoryInfo, error)
	GetFile(name string) (FileInfo, error)
	Exists() bool
}

// FileSystem is the root of a backing store: a disk path or a mounted image.
type FileSystem interface {
	GetDirectoryInfo(path string) (DirectoryInfo, error)
	GetFileInfo(path string) (FileInfo, error)
	IsISO() bool
}
