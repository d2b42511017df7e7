// Package testnode runs an in-process node that speaks the subset of the REST
// API the client uses. It validates submissions the way a real node's
// mempool does, commits them in sequence order and hosts a small message
// module for end-to-end tests.
package testnode

import (
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/opendlt/movecall/internal/account"
	"github.com/opendlt/movecall/types/move"
	"github.com/opendlt/movecall/types/txn"
)

// Config defines the behaviour of the test node
type Config struct {
	// Chain id reported in ledger info and required on submissions
	ChainID txn.ChainID
	// Number of by-hash polls answered "pending" before a transaction commits
	PendingPolls int
	// Amount the node clock advances on every ledger info request
	TimeStep time.Duration
	// Initial node time; zero means the wall clock at start
	Start time.Time
}

// DefaultConfig returns a node serving the local chain id
func DefaultConfig() *Config {
	return &Config{
		ChainID: 4,
	}
}

type accountState struct {
	seq     uint64
	authKey move.Address
}

type pendingTx struct {
	tx    *txn.SignedTransaction
	hash  string
	polls int
}

type committedTx struct {
	tx       *txn.SignedTransaction
	hash     string
	version  uint64
	gasUsed  uint64
	success  bool
	vmStatus string
	time     time.Time
}

// Node is a fake node backed by an httptest server
type Node struct {
	mu        sync.Mutex
	config    Config
	now       time.Time
	version   uint64
	accounts  map[move.Address]*accountState
	modules   map[move.Address]bool
	messages  map[move.Address]string
	pool      map[string]*pendingTx
	committed map[string]*committedTx
	dropNext  int
	requests  map[string]int

	server *httptest.Server
}

// New starts a node and registers its shutdown with t
func New(t testing.TB, config *Config) *Node {
	if config == nil {
		config = DefaultConfig()
	}

	n := &Node{
		config:    *config,
		now:       config.Start,
		accounts:  make(map[move.Address]*accountState),
		modules:   make(map[move.Address]bool),
		messages:  make(map[move.Address]string),
		pool:      make(map[string]*pendingTx),
		committed: make(map[string]*committedTx),
		requests:  make(map[string]int),
	}
	if n.now.IsZero() {
		n.now = time.Now()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1", n.handleLedgerInfo)
	mux.HandleFunc("GET /v1/{$}", n.handleLedgerInfo)
	mux.HandleFunc("GET /v1/accounts/{address}", n.handleAccount)
	mux.HandleFunc("POST /v1/transactions", n.handleSubmit)
	mux.HandleFunc("GET /v1/transactions/by_hash/{hash}", n.handleTransactionByHash)
	mux.HandleFunc("POST /v1/view", n.handleView)

	n.server = httptest.NewServer(mux)
	if t != nil {
		t.Cleanup(n.Close)
	}
	return n
}

// URL returns the REST endpoint including the version prefix
func (n *Node) URL() string {
	return n.server.URL + "/v1"
}

// Close shuts the server down
func (n *Node) Close() {
	n.server.Close()
}

// ChainID returns the chain id the node serves
func (n *Node) ChainID() txn.ChainID {
	return n.config.ChainID
}

// CreateAccount creates an account for pub at its derived address
func (n *Node) CreateAccount(pub ed25519.PublicKey) move.Address {
	addr := account.AuthenticationKey(pub)
	n.CreateAccountAt(addr, pub)
	return addr
}

// CreateAccountAt creates an account at addr whose authentication key is derived from pub
func (n *Node) CreateAccountAt(addr move.Address, pub ed25519.PublicKey) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accounts[addr] = &accountState{authKey: account.AuthenticationKey(pub)}
}

// SetSequenceNumber forces an account's on-chain sequence number
func (n *Node) SetSequenceNumber(addr move.Address, seq uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if acct, ok := n.accounts[addr]; ok {
		acct.seq = seq
	}
}

// SequenceNumber returns an account's on-chain sequence number
func (n *Node) SequenceNumber(addr move.Address) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if acct, ok := n.accounts[addr]; ok {
		return acct.seq
	}
	return 0
}

// PublishMessageModule makes the message module available under addr
func (n *Node) PublishMessageModule(addr move.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.modules[addr] = true
}

// Message returns the message stored for addr
func (n *Node) Message(addr move.Address) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	msg, ok := n.messages[addr]
	return msg, ok
}

// Now returns the node clock
func (n *Node) Now() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.now
}

// Advance moves the node clock forward
func (n *Node) Advance(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.now = n.now.Add(d)
}

// DropNext makes the node acknowledge the next count submissions and then lose them
func (n *Node) DropNext(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropNext = count
}

// SetPendingPolls changes how many polls new submissions stay pending for
func (n *Node) SetPendingPolls(polls int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.config.PendingPolls = polls
}

// Requests returns how many requests hit the named route: ledger, account,
// submit, transaction or view.
func (n *Node) Requests(route string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.requests[route]
}

// Committed reports whether the transaction with hash has been committed and its success flag
func (n *Node) Committed(hash string) (committed, success bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.committed[hash]
	if !ok {
		return false, false
	}
	return true, c.success
}

// process commits every pool transaction whose turn has come. Transactions
// whose expiration has passed are discarded without being committed.
// Callers must hold n.mu.
func (n *Node) process() {
	for changed := true; changed; {
		changed = false

		hashes := make([]string, 0, len(n.pool))
		for hash := range n.pool {
			hashes = append(hashes, hash)
		}
		sort.Strings(hashes)

		for _, hash := range hashes {
			p := n.pool[hash]
			acct := n.accounts[p.tx.Raw.Sender]
			if acct == nil || p.tx.Raw.SequenceNumber < acct.seq {
				delete(n.pool, hash)
				continue
			}
			if p.polls > 0 || p.tx.Raw.SequenceNumber != acct.seq {
				continue
			}

			delete(n.pool, hash)
			changed = true

			if uint64(n.now.Unix()) >= p.tx.Raw.ExpirationTimestampSecs {
				continue
			}

			success, vmStatus, gas := n.execute(p.tx)
			acct.seq++
			n.version++
			n.committed[hash] = &committedTx{
				tx:       p.tx,
				hash:     hash,
				version:  n.version,
				gasUsed:  gas,
				success:  success,
				vmStatus: vmStatus,
				time:     n.now,
			}
		}
	}
}
