// Package store persists the outputs of mining: blocks, question
// distributions, and profiles. Two backends implement the same interface, an
// in-memory store for tests and ephemeral runs and a badger-backed store for
// durable deployments.
package store

import (
	"github.com/robjohncolson/apstat-chain/src/chain"
	"github.com/robjohncolson/apstat-chain/src/distribution"
	"github.com/robjohncolson/apstat-chain/src/reputation"
)

// Store is an interface for backend stores.
type Store interface {
	// CacheSize retrieves the cacheSize setting.
	CacheSize() int
	// GetBlock returns a block by hash.
	GetBlock(hash string) (*chain.Block, error)
	// SetBlock stores a block, keyed by hash. Storing an already-known block
	// is a no-op, which keeps chain merges idempotent.
	SetBlock(block *chain.Block) error
	// Blocks returns every stored block, in no particular order; the ledger
	// merge re-establishes ordering.
	Blocks() ([]*chain.Block, error)
	// GetDistribution returns the distribution of a question.
	GetDistribution(questionID string) (*distribution.QuestionDistribution, error)
	// SetDistribution stores a question distribution.
	SetDistribution(d *distribution.QuestionDistribution) error
	// Distributions returns every stored distribution keyed by question id.
	Distributions() (map[string]*distribution.QuestionDistribution, error)
	// GetProfile returns a profile by public key.
	GetProfile(pubKey string) (*reputation.Profile, error)
	// SetProfile stores a profile. Private key material is never written.
	SetProfile(p *reputation.Profile) error
	// Profiles returns every stored profile.
	Profiles() ([]*reputation.Profile, error)
	// NeedBootstrap returns true when the store was loaded from an existing
	// database and the node should rebuild its state from it.
	NeedBootstrap() bool
	// Close releases the underlying resources.
	Close() error
}
