package lifecycle

import (
	"io/fs"
	"os"
)

// Storage is the read-only artifact store. Any fs.FS works; OSStorage reads
// OS paths directly so absolute artifact paths need no rooting.
type Storage = fs.FS

// OSStorage opens OS paths as given.
type OSStorage struct{}

func (OSStorage) Open(name string) (fs.File, error) { return os.Open(name) }

func (OSStorage) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }
