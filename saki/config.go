package saki

import (
	"encoding/binary"
	"io"
	"iter"

	"sakinode-go/errcode"
	"sakinode-go/x/conv"
)

// MaxItems is the number of slots in the persisted config block.
const MaxItems = 20

const (
	itemSize = 2 + 4
	// BlockSize is the encoded size of the persisted block:
	// int32 count then MaxItems records of {key[2], int32 value}, little-endian.
	BlockSize = 4 + MaxItems*itemSize
)

// Key is a two byte config key. Shorter names are padded with NUL.
type Key [2]byte

// K builds a Key from s, truncating or NUL-padding to two bytes.
func K(s string) Key {
	var k Key
	copy(k[:], s)
	return k
}

func (k Key) String() string {
	switch {
	case k[0] == 0:
		return ""
	case k[1] == 0:
		return string(k[:1])
	}
	return string(k[:])
}

// Printable reports whether the key has a leading byte that can be sent
// on the wire. Only a corrupt block holds keys that fail this.
func (k Key) Printable() bool { return k[0] != 0 }

// Item is one key/value pair.
type Item struct {
	Key   Key
	Value int32
}

// AppendWire appends "kk:value".
func (it Item) AppendWire(dst []byte) []byte {
	dst = append(dst, it.Key.String()...)
	dst = append(dst, ':')
	return conv.AppendInt(dst, int64(it.Value))
}

// Block is the persistent storage a Config is saved to.
type Block interface {
	io.ReaderAt
	io.WriterAt
}

// Config is an ordered, bounded key/value store persisted to a Block.
// Not safe for concurrent use.
type Config struct {
	items  []Item
	cursor int

	store  Block
	offset int64
}

// NewConfig returns an empty store persisted at offset within store.
// A nil store gives a memory-only config whose Load and Save are no-ops.
func NewConfig(store Block, offset int64) *Config {
	return &Config{store: store, offset: offset}
}

func (c *Config) find(k Key) int {
	for i := range c.items {
		if c.items[i].Key == k {
			return i
		}
	}
	return -1
}

// Get returns the value for key, or 0 when absent.
func (c *Config) Get(key string) int32 {
	if i := c.find(K(key)); i >= 0 {
		return c.items[i].Value
	}
	return 0
}

// GetBool reports whether key is present and non-zero.
func (c *Config) GetBool(key string) bool { return c.Get(key) != 0 }

// Has reports whether key is present.
func (c *Config) Has(key string) bool { return c.find(K(key)) >= 0 }

// Set inserts or updates key. A new key beyond MaxItems is rejected with
// ErrCapacity and the store is left unchanged.
func (c *Config) Set(key string, v int32) error { return c.set(K(key), v) }

func (c *Config) set(k Key, v int32) error {
	if i := c.find(k); i >= 0 {
		c.items[i].Value = v
		return nil
	}
	if len(c.items) >= MaxItems {
		return ErrCapacity
	}
	c.items = append(c.items, Item{Key: k, Value: v})
	return nil
}

// SetBool stores b as 1 or 0.
func (c *Config) SetBool(key string, b bool) error {
	var v int32
	if b {
		v = 1
	}
	return c.Set(key, v)
}

// SetDefault inserts key only if it is absent.
func (c *Config) SetDefault(key string, v int32) error {
	if c.find(K(key)) >= 0 {
		return nil
	}
	return c.Set(key, v)
}

// Len returns the number of items.
func (c *Config) Len() int { return len(c.items) }

// Start rewinds the Next cursor.
func (c *Config) Start() { c.cursor = 0 }

// Next returns the item under the cursor and advances it. ok is false
// once every item has been returned.
func (c *Config) Next() (it Item, ok bool) {
	if c.cursor >= len(c.items) {
		return Item{}, false
	}
	it = c.items[c.cursor]
	c.cursor++
	return it, true
}

// All yields items in insertion order. It does not touch the Next cursor.
func (c *Config) All() iter.Seq[Item] {
	return func(yield func(Item) bool) {
		for _, it := range c.items {
			if !yield(it) {
				return
			}
		}
	}
}

// --- persistence ---

type snapshot struct {
	count int32
	items [MaxItems]Item
}

func (s *snapshot) decode(b []byte) {
	s.count = int32(binary.LittleEndian.Uint32(b[0:4]))
	for i := range s.items {
		r := b[4+i*itemSize:]
		s.items[i].Key = Key{r[0], r[1]}
		s.items[i].Value = int32(binary.LittleEndian.Uint32(r[2:6]))
	}
}

func (s *snapshot) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], uint32(s.count))
	for i, it := range s.items {
		r := b[4+i*itemSize:]
		r[0], r[1] = it.Key[0], it.Key[1]
		binary.LittleEndian.PutUint32(r[2:6], uint32(it.Value))
	}
}

func (c *Config) read(s *snapshot) error {
	var buf [BlockSize]byte
	if _, err := c.store.ReadAt(buf[:], c.offset); err != nil {
		return errcode.Wrap(errcode.StorageIO, "config.read", err)
	}
	s.decode(buf[:])
	return nil
}

// Load re-applies every persisted item through Set, so a block holding
// the same key twice collapses to the last value.
// A count <= 0 is an unconfigured block and leaves the store untouched.
// dups reports how many persisted records collapsed onto an earlier key.
func (c *Config) Load() (dups int, err error) {
	if c.store == nil {
		return 0, nil
	}
	var s snapshot
	if err := c.read(&s); err != nil {
		return 0, err
	}
	if s.count <= 0 {
		return 0, nil
	}
	if s.count > MaxItems {
		return 0, ErrCorruptBlock
	}
	for _, it := range s.items[:s.count] {
		if c.find(it.Key) >= 0 {
			dups++
		}
		if err := c.set(it.Key, it.Value); err != nil {
			return dups, err
		}
	}
	return dups, nil
}

// Save writes the store when it differs from what the block holds.
// Items are compared slot by slot (key bytes and value) together with the
// count; slots past the count keep whatever the block already had.
// wrote reports whether a write was issued.
func (c *Config) Save() (wrote bool, err error) {
	if c.store == nil {
		return false, nil
	}
	var s snapshot
	if err := c.read(&s); err != nil {
		return false, err
	}
	changed := false
	for i, it := range c.items {
		if s.items[i] != it {
			changed = true
			s.items[i] = it
		}
	}
	if s.count != int32(len(c.items)) {
		changed = true
		s.count = int32(len(c.items))
	}
	if !changed {
		return false, nil
	}
	var buf [BlockSize]byte
	s.encode(buf[:])
	if _, err := c.store.WriteAt(buf[:], c.offset); err != nil {
		return false, errcode.Wrap(errcode.StorageIO, "config.write", err)
	}
	return true, nil
}
