package storage

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"arogyarakshak/core/block"
)

var (
	// ErrCorrupt is returned when a stored block cannot be opened or decoded.
	ErrCorrupt = errors.New("storage: corrupt block")
	// ErrOutOfOrder is returned when a block does not extend the stored chain.
	ErrOutOfOrder = errors.New("storage: block out of order")
)

var (
	blockPrefix = []byte("block:")
	heightKey   = []byte("meta:height")
)

// Storage is an append-only LevelDB block store. Blocks are keyed by their
// zero-padded number so iteration yields chain order.
type Storage struct {
	mu         sync.Mutex
	db         *leveldb.DB
	cipher     Cipher
	syncWrites bool
	height     uint64
}

// NewStorage opens (or creates) a block store at path.
func NewStorage(path string, c Cipher) (*Storage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open block store %s: %w", path, err)
	}
	return newStorage(db, c, true)
}

// NewMemStorage opens a block store backed by memory. Nothing survives Close.
func NewMemStorage(c Cipher) (*Storage, error) {
	db, err := leveldb.Open(lvstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return newStorage(db, c, false)
}

func newStorage(db *leveldb.DB, c Cipher, syncWrites bool) (*Storage, error) {
	if c == nil {
		c = NopCipher{}
	}
	s := &Storage{db: db, cipher: c, syncWrites: syncWrites}
	raw, err := db.Get(heightKey, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		db.Close()
		return nil, err
	default:
		h, perr := strconv.ParseUint(string(raw), 10, 64)
		if perr != nil {
			db.Close()
			return nil, fmt.Errorf("%w: bad height record %q", ErrCorrupt, raw)
		}
		s.height = h
	}
	return s, nil
}

func blockKey(n uint64) []byte {
	return []byte(fmt.Sprintf("block:%020d", n))
}

// Height is the number of stored blocks.
func (s *Storage) Height() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// AppendBlock writes b and the new height in one batch. b.BlockNo must equal
// the current height.
func (s *Storage) AppendBlock(b block.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.BlockNo != s.height {
		return fmt.Errorf("%w: got block %d, expected %d", ErrOutOfOrder, b.BlockNo, s.height)
	}
	data, err := b.Serialize()
	if err != nil {
		return err
	}
	enc, err := s.cipher.Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypt block %d: %w", b.BlockNo, err)
	}
	batch := new(leveldb.Batch)
	batch.Put(blockKey(b.BlockNo), enc)
	batch.Put(heightKey, []byte(strconv.FormatUint(b.BlockNo+1, 10)))
	if err := s.db.Write(batch, &opt.WriteOptions{Sync: s.syncWrites}); err != nil {
		return fmt.Errorf("write block %d: %w", b.BlockNo, err)
	}
	s.height = b.BlockNo + 1
	return nil
}

// GetBlock reads block n.
func (s *Storage) GetBlock(n uint64) (block.Block, error) {
	enc, err := s.db.Get(blockKey(n), nil)
	if err != nil {
		return block.Block{}, err
	}
	return s.decode(n, enc)
}

// LoadBlocks returns every stored block in order. Any block that fails to
// decrypt or decode aborts the load with ErrCorrupt.
func (s *Storage) LoadBlocks() ([]block.Block, error) {
	iter := s.db.NewIterator(util.BytesPrefix(blockPrefix), nil)
	defer iter.Release()

	var chain []block.Block
	for iter.Next() {
		key := string(iter.Key())
		n, err := strconv.ParseUint(key[len(blockPrefix):], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad key %q", ErrCorrupt, key)
		}
		b, err := s.decode(n, iter.Value())
		if err != nil {
			return nil, err
		}
		chain = append(chain, b)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return chain, nil
}

func (s *Storage) decode(n uint64, enc []byte) (block.Block, error) {
	data, err := s.cipher.Decrypt(enc)
	if err != nil {
		return block.Block{}, fmt.Errorf("%w: block %d: %v", ErrCorrupt, n, err)
	}
	b, err := block.Deserialize(data)
	if err != nil {
		return block.Block{}, fmt.Errorf("%w: block %d: %v", ErrCorrupt, n, err)
	}
	return b, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB exposes the underlying LevelDB instance.
func (s *Storage) DB() *leveldb.DB {
	return s.db
}
