package store

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/ugorji/go/codec"

	cm "github.com/robjohncolson/apstat-chain/src/common"
	"github.com/robjohncolson/apstat-chain/src/chain"
	"github.com/robjohncolson/apstat-chain/src/distribution"
	"github.com/robjohncolson/apstat-chain/src/reputation"
)

const (
	blockPrefix   = "block"
	distPrefix    = "dist"
	profilePrefix = "profile"
)

// BadgerStore is a write-through Store: every record lands in the wrapped
// InmemStore and in a badger database, and reads fall back to the database
// on a cache miss. Profiles are stored without private key material.
type BadgerStore struct {
	inmemStore    *InmemStore
	db            *badger.DB
	path          string
	needBootstrap bool
}

// NewBadgerStore creates a brand new Store with a new database.
func NewBadgerStore(cacheSize int, path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.Logger = nil

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(cacheSize),
		db:         handle,
		path:       path,
	}

	return store, nil
}

// LoadBadgerStore creates a Store from an existing database. The entire
// database is read back into the InmemStore, and NeedBootstrap is set so the
// node rebuilds its ledger and tracker from it.
func LoadBadgerStore(cacheSize int, path string) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.Logger = nil

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore:    NewInmemStore(cacheSize),
		db:            handle,
		path:          path,
		needBootstrap: true,
	}

	if err := store.loadAll(); err != nil {
		store.Close()
		return nil, err
	}

	return store, nil
}

func (s *BadgerStore) loadAll() error {
	err := s.iterPrefix([]byte(blockPrefix+"_"), func(val []byte) error {
		block := new(chain.Block)
		if err := block.Unmarshal(val); err != nil {
			return err
		}
		return s.inmemStore.SetBlock(block)
	})
	if err != nil {
		return err
	}

	dists, err := s.dbGetDistributions()
	if err != nil {
		return err
	}
	for _, d := range dists {
		if err := s.inmemStore.SetDistribution(d); err != nil {
			return err
		}
	}

	profiles, err := s.dbGetProfiles()
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if err := s.inmemStore.SetProfile(p); err != nil {
			return err
		}
	}

	return nil
}

// CacheSize implements the Store interface.
func (s *BadgerStore) CacheSize() int {
	return s.inmemStore.CacheSize()
}

// GetBlock implements the Store interface.
func (s *BadgerStore) GetBlock(hash string) (*chain.Block, error) {
	res, err := s.inmemStore.GetBlock(hash)
	if err != nil {
		res, err = s.dbGetBlock(hash)
	}
	return res, mapError(err, "Block", string(blockKey(hash)))
}

// SetBlock implements the Store interface.
func (s *BadgerStore) SetBlock(block *chain.Block) error {
	if err := s.inmemStore.SetBlock(block); err != nil {
		return err
	}
	return s.dbSetBlock(block)
}

// Blocks implements the Store interface.
func (s *BadgerStore) Blocks() ([]*chain.Block, error) {
	return s.inmemStore.Blocks()
}

// GetDistribution implements the Store interface.
func (s *BadgerStore) GetDistribution(questionID string) (*distribution.QuestionDistribution, error) {
	res, err := s.inmemStore.GetDistribution(questionID)
	if err != nil {
		res, err = s.dbGetDistribution(questionID)
	}
	return res, mapError(err, "Distribution", questionID)
}

// SetDistribution implements the Store interface.
func (s *BadgerStore) SetDistribution(d *distribution.QuestionDistribution) error {
	if err := s.inmemStore.SetDistribution(d); err != nil {
		return err
	}
	return s.dbSetDistribution(d)
}

// Distributions implements the Store interface.
func (s *BadgerStore) Distributions() (map[string]*distribution.QuestionDistribution, error) {
	return s.inmemStore.Distributions()
}

// GetProfile implements the Store interface.
func (s *BadgerStore) GetProfile(pubKey string) (*reputation.Profile, error) {
	res, err := s.inmemStore.GetProfile(pubKey)
	if err != nil {
		res, err = s.dbGetProfile(pubKey)
	}
	return res, mapError(err, "Profile", pubKey)
}

// SetProfile implements the Store interface.
func (s *BadgerStore) SetProfile(p *reputation.Profile) error {
	if err := s.inmemStore.SetProfile(p); err != nil {
		return err
	}
	return s.dbSetProfile(p)
}

// Profiles implements the Store interface.
func (s *BadgerStore) Profiles() ([]*reputation.Profile, error) {
	return s.inmemStore.Profiles()
}

// NeedBootstrap implements the Store interface.
func (s *BadgerStore) NeedBootstrap() bool {
	return s.needBootstrap
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

/*******************************************************************************
* DB
*******************************************************************************/

func blockKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s_%s", blockPrefix, hash))
}

func distKey(questionID string) []byte {
	return []byte(fmt.Sprintf("%s_%s", distPrefix, questionID))
}

func profileKey(pubKey string) []byte {
	return []byte(fmt.Sprintf("%s_%s", profilePrefix, pubKey))
}

func (s *BadgerStore) dbGet(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

func (s *BadgerStore) dbSet(key, val []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

func (s *BadgerStore) dbGetBlock(hash string) (*chain.Block, error) {
	blockBytes, err := s.dbGet(blockKey(hash))
	if err != nil {
		return nil, err
	}

	block := new(chain.Block)
	if err := block.Unmarshal(blockBytes); err != nil {
		return nil, err
	}

	return block, nil
}

func (s *BadgerStore) dbSetBlock(block *chain.Block) error {
	blockBytes, err := block.Marshal()
	if err != nil {
		return err
	}
	return s.dbSet(blockKey(block.Hash), blockBytes)
}

func (s *BadgerStore) dbGetDistribution(questionID string) (*distribution.QuestionDistribution, error) {
	raw, err := s.dbGet(distKey(questionID))
	if err != nil {
		return nil, err
	}

	d := new(distribution.QuestionDistribution)
	if err := decodeJSON(raw, d); err != nil {
		return nil, err
	}

	return d, nil
}

func (s *BadgerStore) dbSetDistribution(d *distribution.QuestionDistribution) error {
	raw, err := encodeJSON(d)
	if err != nil {
		return err
	}
	return s.dbSet(distKey(d.QuestionID), raw)
}

func (s *BadgerStore) dbGetDistributions() ([]*distribution.QuestionDistribution, error) {
	res := []*distribution.QuestionDistribution{}
	err := s.iterPrefix([]byte(distPrefix+"_"), func(val []byte) error {
		d := new(distribution.QuestionDistribution)
		if err := decodeJSON(val, d); err != nil {
			return err
		}
		res = append(res, d)
		return nil
	})
	return res, err
}

func (s *BadgerStore) dbGetProfile(pubKey string) (*reputation.Profile, error) {
	raw, err := s.dbGet(profileKey(pubKey))
	if err != nil {
		return nil, err
	}

	p := new(reputation.Profile)
	if err := decodeJSON(raw, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *BadgerStore) dbSetProfile(p *reputation.Profile) error {
	// PrivKeyHex carries a codec:"-" tag; secrets never reach the database.
	raw, err := encodeJSON(p)
	if err != nil {
		return err
	}
	return s.dbSet(profileKey(p.PubKey), raw)
}

func (s *BadgerStore) dbGetProfiles() ([]*reputation.Profile, error) {
	res := []*reputation.Profile{}
	err := s.iterPrefix([]byte(profilePrefix+"_"), func(val []byte) error {
		p := new(reputation.Profile)
		if err := decodeJSON(val, p); err != nil {
			return err
		}
		res = append(res, p)
		return nil
	})
	return res, err
}

func (s *BadgerStore) iterPrefix(prefix []byte, fn func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(val); err != nil {
				return err
			}
		}
		return nil
	})
}

func encodeJSON(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	if err := codec.NewEncoder(b, jh).Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decodeJSON(raw []byte, v interface{}) error {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	return codec.NewDecoder(bytes.NewBuffer(raw), jh).Decode(v)
}

func mapError(err error, name, key string) error {
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
		if cm.IsStore(err, cm.KeyNotFound) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
