package store

import (
	cm "github.com/robjohncolson/apstat-chain/src/common"
	"github.com/robjohncolson/apstat-chain/src/chain"
	"github.com/robjohncolson/apstat-chain/src/distribution"
	"github.com/robjohncolson/apstat-chain/src/reputation"
)

// InmemStore implements the Store interface with plain maps. It is the
// default backend; nothing survives a restart.
type InmemStore struct {
	cacheSize     int
	blocks        map[string]*chain.Block
	distributions map[string]*distribution.QuestionDistribution
	profiles      map[string]*reputation.Profile
}

// NewInmemStore ...
func NewInmemStore(cacheSize int) *InmemStore {
	return &InmemStore{
		cacheSize:     cacheSize,
		blocks:        map[string]*chain.Block{},
		distributions: map[string]*distribution.QuestionDistribution{},
		profiles:      map[string]*reputation.Profile{},
	}
}

// CacheSize implements the Store interface.
func (s *InmemStore) CacheSize() int {
	return s.cacheSize
}

// GetBlock implements the Store interface.
func (s *InmemStore) GetBlock(hash string) (*chain.Block, error) {
	block, ok := s.blocks[hash]
	if !ok {
		return nil, cm.NewStoreErr("Block", cm.KeyNotFound, hash)
	}
	return block, nil
}

// SetBlock implements the Store interface.
func (s *InmemStore) SetBlock(block *chain.Block) error {
	s.blocks[block.Hash] = block
	return nil
}

// Blocks implements the Store interface.
func (s *InmemStore) Blocks() ([]*chain.Block, error) {
	res := make([]*chain.Block, 0, len(s.blocks))
	for _, b := range s.blocks {
		res = append(res, b)
	}
	return res, nil
}

// GetDistribution implements the Store interface.
func (s *InmemStore) GetDistribution(questionID string) (*distribution.QuestionDistribution, error) {
	d, ok := s.distributions[questionID]
	if !ok {
		return nil, cm.NewStoreErr("Distribution", cm.KeyNotFound, questionID)
	}
	return d, nil
}

// SetDistribution implements the Store interface.
func (s *InmemStore) SetDistribution(d *distribution.QuestionDistribution) error {
	s.distributions[d.QuestionID] = d
	return nil
}

// Distributions implements the Store interface.
func (s *InmemStore) Distributions() (map[string]*distribution.QuestionDistribution, error) {
	res := make(map[string]*distribution.QuestionDistribution, len(s.distributions))
	for qid, d := range s.distributions {
		res[qid] = d
	}
	return res, nil
}

// GetProfile implements the Store interface.
func (s *InmemStore) GetProfile(pubKey string) (*reputation.Profile, error) {
	p, ok := s.profiles[pubKey]
	if !ok {
		return nil, cm.NewStoreErr("Profile", cm.KeyNotFound, pubKey)
	}
	return p, nil
}

// SetProfile implements the Store interface.
func (s *InmemStore) SetProfile(p *reputation.Profile) error {
	s.profiles[p.PubKey] = p
	return nil
}

// Profiles implements the Store interface.
func (s *InmemStore) Profiles() ([]*reputation.Profile, error) {
	res := make([]*reputation.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		res = append(res, p)
	}
	return res, nil
}

// NeedBootstrap implements the Store interface.
func (s *InmemStore) NeedBootstrap() bool {
	return false
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}
