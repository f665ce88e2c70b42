// Package storage provides the block devices node configuration is
// persisted to.
package storage

import (
	"io"
	"sync"

	"sakinode-go/errcode"
)

// Block is random-access persistent storage.
type Block interface {
	io.ReaderAt
	io.WriterAt
}

// Erased is the byte value of never-written EEPROM.
const Erased = 0xFF

func checkRange(op string, off int64, n, size int) error {
	if off < 0 || off+int64(n) > int64(size) {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "out of range"}
	}
	return nil
}

// Memory is an in-RAM Block that counts reads and writes.
type Memory struct {
	mu     sync.Mutex
	buf    []byte
	reads  int
	writes int
}

// NewMemory returns size bytes of erased storage.
func NewMemory(size int) *Memory {
	b := make([]byte, size)
	for i := range b {
		b[i] = Erased
	}
	return &Memory{buf: b}
}

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange("memory.read", off, len(p), len(m.buf)); err != nil {
		return 0, err
	}
	m.reads++
	return copy(p, m.buf[off:]), nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange("memory.write", off, len(p), len(m.buf)); err != nil {
		return 0, err
	}
	m.writes++
	return copy(m.buf[off:], p), nil
}

// Writes returns the number of WriteAt calls that reached the buffer.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Reads returns the number of successful ReadAt calls.
func (m *Memory) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Bytes returns a copy of the contents.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.buf...)
}
