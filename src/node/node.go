// Package node ties the ledger, mempool, distribution tracker, and
// reputation engine into one lock-guarded aggregate. Mine is the only
// operation that mutates more than one of them, and it does so as one
// indivisible step.
package node

import (
	"crypto/ecdsa"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/robjohncolson/apstat-chain/src/chain"
	"github.com/robjohncolson/apstat-chain/src/config"
	"github.com/robjohncolson/apstat-chain/src/consensus"
	"github.com/robjohncolson/apstat-chain/src/crypto"
	"github.com/robjohncolson/apstat-chain/src/crypto/keys"
	"github.com/robjohncolson/apstat-chain/src/distribution"
	"github.com/robjohncolson/apstat-chain/src/mempool"
	"github.com/robjohncolson/apstat-chain/src/reputation"
	"github.com/robjohncolson/apstat-chain/src/store"
)

// Node is the engine's aggregate root.
type Node struct {
	state

	// coreLock guards the ledger+mempool+tracker+profiles aggregate.
	coreLock sync.Mutex

	conf   *config.Config
	logger *logrus.Entry

	hasher  crypto.Hasher
	ledger  *chain.Ledger
	pool    *mempool.Mempool
	tracker *distribution.Tracker

	repEngine *reputation.Engine
	store     store.Store
	answers   consensus.AnswerSource

	profiles map[string]*reputation.Profile
	active   *reputation.Profile
	signer   crypto.Signer

	shutdownCh chan struct{}
}

// NewNode instantiates a node over a store and an answer source. Call Init
// before use.
func NewNode(conf *config.Config, st store.Store, answers consensus.AnswerSource, logger *logrus.Entry) *Node {
	return &Node{
		conf:       conf,
		logger:     logger,
		hasher:     conf.Hasher(),
		ledger:     chain.NewLedger(),
		pool:       mempool.New(),
		tracker:    distribution.NewTracker(),
		repEngine:  reputation.NewEngine(conf.Reputation, logger),
		store:      st,
		answers:    answers,
		profiles:   map[string]*reputation.Profile{},
		shutdownCh: make(chan struct{}),
	}
}

// Init bootstraps the node from the store when the store was loaded from an
// existing database, and unlocks the profile from the configured key.
func (n *Node) Init() error {
	if n.store.NeedBootstrap() {
		blocks, err := n.store.Blocks()
		if err != nil {
			return err
		}

		merged, rejected := n.ledger.Merge(blocks, n.hasher)
		if rejected > 0 {
			n.logger.WithField("rejected", rejected).Warn("Bootstrap: corrupt blocks dropped")
		}
		n.ledger = merged

		dists, err := n.store.Distributions()
		if err != nil {
			return err
		}
		n.tracker = distribution.NewTrackerFrom(dists)

		profiles, err := n.store.Profiles()
		if err != nil {
			return err
		}
		for _, p := range profiles {
			n.profiles[p.PubKey] = p
		}
	}

	if n.conf.Key != nil {
		if _, err := n.UnlockProfileKey(n.conf.Key); err != nil {
			return err
		}
	}

	n.logger.WithFields(logrus.Fields{
		"blocks":   n.ledger.Len(),
		"profiles": len(n.profiles),
	}).Debug("Init")

	return nil
}

/*******************************************************************************
* Profiles
*******************************************************************************/

// CreateProfile generates a fresh keypair, announces it with a CREATE_USER
// transaction, and activates it. The returned copy carries the private key;
// it is the caller's only chance to back it up, because the node never
// serializes secrets.
func (n *Node) CreateProfile(username string) (reputation.Profile, error) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return reputation.Profile{}, err
	}

	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	signer := crypto.NewECDSASigner(key)

	tx, err := chain.NewCreateUserTx(n.hasher, signer, username)
	if err != nil {
		return reputation.Profile{}, err
	}

	if err := n.pool.Add(tx); err != nil {
		return reputation.Profile{}, err
	}

	profile := &reputation.Profile{
		Username:   username,
		Archetype:  reputation.Explorers,
		PubKey:     signer.PublicKeyHex(),
		PrivKeyHex: keys.PrivateKeyHex(key),
	}

	n.profiles[profile.PubKey] = profile
	n.active = profile
	n.signer = signer

	if err := n.store.SetProfile(profile); err != nil {
		return reputation.Profile{}, err
	}

	n.logger.WithFields(logrus.Fields{
		"username": username,
		"pubkey":   profile.PubKey,
	}).Debug("Created profile")

	return *profile, nil
}

// UnlockProfile activates the profile owned by the given private key.
func (n *Node) UnlockProfile(privKeyHex string) (reputation.Profile, error) {
	key, err := keys.ParsePrivateKeyHex(privKeyHex)
	if err != nil {
		return reputation.Profile{}, err
	}
	return n.UnlockProfileKey(key)
}

// UnlockProfileKey is UnlockProfile for an already-parsed key. A key whose
// profile is not known locally (eg. created on another device and not yet
// imported) gets a fresh profile shell.
func (n *Node) UnlockProfileKey(key *ecdsa.PrivateKey) (reputation.Profile, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	signer := crypto.NewECDSASigner(key)
	pubKey := signer.PublicKeyHex()

	p := n.profiles[pubKey]
	if p == nil {
		p = &reputation.Profile{
			Archetype: reputation.Explorers,
			PubKey:    pubKey,
		}
		n.profiles[pubKey] = p
		if err := n.store.SetProfile(p); err != nil {
			return reputation.Profile{}, err
		}
	}

	// Private key material lives in memory only.
	p.PrivKeyHex = keys.PrivateKeyHex(key)

	n.active = p
	n.signer = signer

	n.logger.WithField("pubkey", pubKey).Debug("Unlocked profile")

	return p.Public(), nil
}

// LockProfile deactivates the current profile. Submissions and mining fail
// with ErrLockedProfile until another profile is unlocked.
func (n *Node) LockProfile() {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	if n.active != nil {
		n.active.PrivKeyHex = ""
	}
	n.active = nil
	n.signer = nil
}

/*******************************************************************************
* Submit / Mine
*******************************************************************************/

// Submit validates, signs, and pools an attestation transaction. Validation
// failures are reported as chain.ValidationError before anything is pooled.
func (n *Node) Submit(questionID string, questionType string, answer string, score float64) (*chain.Transaction, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	if n.signer == nil {
		return nil, ErrLockedProfile
	}

	tx, err := chain.NewAttestationTx(n.hasher, n.signer, questionID, questionType, answer, score)
	if err != nil {
		return nil, err
	}

	if err := n.pool.Add(tx); err != nil {
		return nil, err
	}

	n.logger.WithFields(logrus.Fields{
		"tx":       tx.ID,
		"question": questionID,
	}).Debug("Submitted transaction")

	return tx, nil
}

// Mine runs one mining step over the aggregate. It returns (nil, nil) when
// no block was produced, which is a normal outcome: an empty mempool or an
// unmet quorum leaves the ledger, mempool, and tracker untouched.
func (n *Node) Mine() (*chain.Block, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	if n.active == nil {
		return nil, ErrLockedProfile
	}

	// Snapshot each pending question's shares before the tracker moves, so
	// the minority bonus reflects the crowd at answer time.
	preShares := map[string]map[string]float64{}
	for _, tx := range n.pool.Pending() {
		if tx.Type == chain.ATTESTATION {
			if _, ok := preShares[tx.QuestionID]; !ok {
				preShares[tx.QuestionID] = n.tracker.Shares(tx.QuestionID)
			}
		}
	}

	attestor := consensus.NewSelfAttestor(n.hasher, n.active.PubKey)
	miner := consensus.NewMiner(n.hasher, attestor, n.conf.Quorum(), n.logger)

	block, err := miner.Mine(n.pool, n.ledger, n.tracker, n.answers)
	if err != nil || block == nil {
		return nil, err
	}

	if err := n.store.SetBlock(block); err != nil {
		return nil, err
	}

	for _, tx := range block.Body.Transactions {
		if d := n.tracker.Get(tx.QuestionID); d != nil {
			if err := n.store.SetDistribution(d); err != nil {
				return nil, err
			}
		}
	}

	n.applyReputation(block, preShares)

	if err := n.store.SetProfile(n.active); err != nil {
		return nil, err
	}

	return block, nil
}

// applyReputation folds the finalized block into the active profile's
// score: one update per attestation transaction the profile contributed.
func (n *Node) applyReputation(block *chain.Block, preShares map[string]map[string]float64) {
	attsByQuestion := map[string][]*chain.Attestation{}
	for _, a := range block.Body.Attestations {
		attsByQuestion[a.QuestionID] = append(attsByQuestion[a.QuestionID], a)
	}

	streak := n.active.Streak

	for _, tx := range block.Body.Transactions {
		if tx.Type != chain.ATTESTATION || tx.Answer == nil || tx.AttesterPubKey != n.active.PubKey {
			continue
		}

		submitted := tx.Answer.Choice
		if tx.Answer.Type == chain.FREE_RESPONSE {
			submitted = tx.Answer.Text
		}

		var att *chain.Attestation
		for _, a := range attsByQuestion[tx.QuestionID] {
			if a.SubmittedAnswer == submitted {
				att = a
				break
			}
		}

		accuracy := 0.0
		if att != nil && att.IsMatch {
			accuracy = 1.0
			streak++
		} else {
			streak = 0
		}

		n.repEngine.Update(n.active, accuracy, attsByQuestion[tx.QuestionID], preShares[tx.QuestionID], submitted, streak)
	}
}

/*******************************************************************************
* Run loop
*******************************************************************************/

// Run starts the background mining loop in a tracked goroutine and blocks
// until Shutdown. Shutdown waits for the loop to drain before closing the
// store.
func (n *Node) Run() {
	n.setState(Running)
	n.goFunc(n.mineLoop)
	n.waitRoutines()
}

func (n *Node) mineLoop() {
	interval := n.conf.MineInterval
	if interval <= 0 {
		interval = config.DefaultMineInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n.getState() != Running {
				continue
			}
			if _, err := n.Mine(); err != nil && err != ErrLockedProfile {
				n.logger.WithError(err).Error("Mining")
			}
		case <-n.shutdownCh:
			return
		}
	}
}

// Suspend pauses the background loop without tearing the node down.
func (n *Node) Suspend() {
	if n.getState() == Running {
		n.logger.Debug("Suspend")
		n.setState(Suspended)
	}
}

// Resume restarts a suspended loop.
func (n *Node) Resume() {
	if n.getState() == Suspended {
		n.logger.Debug("Resume")
		n.setState(Running)
	}
}

// Shutdown stops the loop, waits for routines, and closes the store.
func (n *Node) Shutdown() {
	if n.getState() == Shutdown {
		return
	}

	n.logger.Debug("Shutdown")
	n.setState(Shutdown)
	close(n.shutdownCh)
	n.waitRoutines()

	if err := n.store.Close(); err != nil {
		n.logger.WithError(err).Error("Closing store")
	}
}

/*******************************************************************************
* Read projections
*******************************************************************************/

// GetState returns the lifecycle state.
func (n *Node) GetState() State {
	return n.getState()
}

// Stats returns a map of high-level counters for the HTTP service.
func (n *Node) Stats() map[string]string {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	locked := strconv.FormatBool(n.active == nil)

	return map[string]string{
		"chain_length":         strconv.Itoa(n.ledger.Len()),
		"pending_transactions": strconv.Itoa(n.pool.Len()),
		"tracked_questions":    strconv.Itoa(n.tracker.Len()),
		"profile_locked":       locked,
		"state":                n.getState().String(),
		"moniker":              n.conf.Moniker,
	}
}

// ChainLength returns the number of finalized blocks.
func (n *Node) ChainLength() int {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	return n.ledger.Len()
}

// PendingCount returns the mempool length.
func (n *Node) PendingCount() int {
	return n.pool.Len()
}

// GetBlock returns the block at the given chain index.
func (n *Node) GetBlock(index int) (*chain.Block, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	return n.ledger.Get(index)
}

// Distribution returns the tally for a question.
func (n *Node) Distribution(questionID string) (*distribution.QuestionDistribution, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	d := n.tracker.Get(questionID)
	if d == nil {
		return nil, ErrUnknownQuestion
	}
	return d, nil
}

// Convergence returns the convergence score for a question; zero when the
// question was never attested.
func (n *Node) Convergence(questionID string) float64 {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	return n.tracker.Convergence(questionID)
}

// Reputation returns the active profile's score with lazy decay applied.
func (n *Node) Reputation() (float64, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	if n.active == nil {
		return 0, ErrLockedProfile
	}

	return n.repEngine.DecayedScore(n.active, time.Now()), nil
}

// PublicProfile returns the active profile without private key material.
func (n *Node) PublicProfile() (reputation.Profile, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	if n.active == nil {
		return reputation.Profile{}, ErrLockedProfile
	}

	return n.active.Public(), nil
}
