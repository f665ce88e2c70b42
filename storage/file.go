package storage

import (
	"bytes"
	"os"

	"sakinode-go/errcode"
)

// File is a Block backed by a regular file, for host nodes without EEPROM.
type File struct {
	f    *os.File
	size int
}

// OpenFile opens or creates path holding size bytes. A new or short file
// is extended with erased bytes.
func OpenFile(path string, size int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errcode.Wrap(errcode.StorageIO, "file.open", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errcode.Wrap(errcode.StorageIO, "file.stat", err)
	}
	if have := int(st.Size()); have < size {
		pad := bytes.Repeat([]byte{Erased}, size-have)
		if _, err := f.WriteAt(pad, int64(have)); err != nil {
			f.Close()
			return nil, errcode.Wrap(errcode.StorageIO, "file.extend", err)
		}
	}
	return &File{f: f, size: size}, nil
}

func (b *File) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange("file.read", off, len(p), b.size); err != nil {
		return 0, err
	}
	n, err := b.f.ReadAt(p, off)
	return n, errcode.Wrap(errcode.StorageIO, "file.read", err)
}

// WriteAt writes and syncs so a block update survives a crash.
func (b *File) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange("file.write", off, len(p), b.size); err != nil {
		return 0, err
	}
	n, err := b.f.WriteAt(p, off)
	if err == nil {
		err = b.f.Sync()
	}
	return n, errcode.Wrap(errcode.StorageIO, "file.write", err)
}

func (b *File) Close() error { return b.f.Close() }
