// Package chaintest provides an in-memory chain that speaks the ERC1967Factory protocol,
// for testing deployments and upgrades without an EVM.
package chaintest

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/chain"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

// ErrInjected is returned by submissions refused through FailSubmissionsAfter.
var ErrInjected = errors.New("injected submission failure")

// proxyRuntime stands in for the ERC1967 proxy bytecode the factory deploys.
var proxyRuntime = []byte{0x36, 0x3d, 0x3d, 0x37, 0x3d, 0x3d, 0x3d, 0x36, 0x3d, 0x73}

type account struct {
	code    []byte
	program *Program
	storage map[string]any
	slots   map[common.Hash]common.Hash
}

type state struct {
	mu sync.Mutex

	factory  common.Address
	programs []*Program
	accounts map[common.Address]*account
	admins   map[common.Address]common.Address
	nonces   map[common.Address]uint64
	head     uint64

	receipts map[common.Hash]*types.Receipt
	stalled  map[common.Hash]bool

	submitted  int
	failAfter  int
	stallNext  int
	txsByBlock map[uint64]common.Hash
}

// Chain is a view of the shared fake chain state from one signer.
type Chain struct {
	s    *state
	from common.Address
}

var _ chain.Client = (*Chain)(nil)

// New creates an empty chain with the factory at proxy.DefaultFactory.
func New(from common.Address) *Chain {
	s := &state{
		factory:    proxy.DefaultFactory,
		accounts:   make(map[common.Address]*account),
		admins:     make(map[common.Address]common.Address),
		nonces:     make(map[common.Address]uint64),
		receipts:   make(map[common.Hash]*types.Receipt),
		stalled:    make(map[common.Hash]bool),
		txsByBlock: make(map[uint64]common.Hash),
		failAfter:  -1,
		head:       1,
	}
	s.accounts[s.factory] = &account{code: []byte{0xfa, 0xc7}}
	return &Chain{s: s, from: from}
}

// As returns a view of the same chain that signs as from.
func (c *Chain) As(from common.Address) *Chain {
	return &Chain{s: c.s, from: from}
}

func (c *Chain) Factory() common.Address {
	return c.s.factory
}

// Register makes contracts created with p.CreationCode behave as p.
func (c *Chain) Register(p *Program) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.programs = append(c.s.programs, p)
}

// Submitted is the number of transactions broadcast so far, from any signer.
func (c *Chain) Submitted() int {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.submitted
}

// FailSubmissionsAfter lets n more transactions through, then refuses every submission.
// A negative n removes the limit.
func (c *Chain) FailSubmissionsAfter(n int) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if n < 0 {
		c.s.failAfter = -1
		return
	}
	c.s.failAfter = c.s.submitted + n
}

// StallNext makes the receipts of the next n transactions unavailable. The transactions
// are still executed, they land but nobody is told.
func (c *Chain) StallNext(n int) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.stallNext = n
}

// ReleaseStalled makes all withheld receipts available.
func (c *Chain) ReleaseStalled() {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	clear(c.s.stalled)
}

// Head is the current block number.
func (c *Chain) Head() uint64 {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.head
}

// Storage returns the named value a contract holds, e.g. a field set by an initializer.
func (c *Chain) Storage(addr common.Address, name string) (any, bool) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	acc, ok := c.s.accounts[addr]
	if !ok {
		return nil, false
	}
	v, ok := acc.storage[name]
	return v, ok
}

// SetImplementationSlot overwrites a proxy's implementation slot, as an out-of-band upgrade would.
func (c *Chain) SetImplementationSlot(proxyAddr common.Address, impl common.Address) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if acc, ok := c.s.accounts[proxyAddr]; ok {
		acc.slots[proxy.ImplementationSlot] = common.BytesToHash(impl.Bytes())
	}
}

func (c *Chain) From() common.Address {
	return c.from
}

func (c *Chain) SubmitTransaction(ctx context.Context, to *common.Address, data []byte, value *big.Int) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter >= 0 && s.submitted >= s.failAfter {
		return common.Hash{}, ErrInjected
	}

	nonce := s.nonces[c.from]
	var (
		created common.Address
		logs    []*types.Log
		err     error
	)
	if to == nil {
		created, err = s.create(c.from, nonce, data)
	} else {
		logs, err = s.execute(c.from, *to, data)
	}
	if err != nil {
		var r *revert
		if errors.As(err, &r) {
			return common.Hash{}, &chain.RevertError{Data: r.data}
		}
		return common.Hash{}, err
	}
	s.nonces[c.from] = nonce + 1
	s.submitted++
	s.head++
	tx := types.NewTx(&types.LegacyTx{Nonce: nonce, To: to, Data: data, Value: value})
	hash := crypto.Keccak256Hash(c.from.Bytes(), tx.Hash().Bytes())
	blockHash := crypto.Keccak256Hash(new(big.Int).SetUint64(s.head).Bytes(), hash.Bytes())
	for i, l := range logs {
		l.TxHash = hash
		l.BlockNumber = s.head
		l.BlockHash = blockHash
		l.Index = uint(i)
	}
	s.receipts[hash] = &types.Receipt{
		Status:          types.ReceiptStatusSuccessful,
		TxHash:          hash,
		ContractAddress: created,
		Logs:            logs,
		BlockHash:       blockHash,
		BlockNumber:     new(big.Int).SetUint64(s.head),
		GasUsed:         21_000 + uint64(len(data))*16,
	}
	s.txsByBlock[s.head] = hash
	if s.stallNext > 0 {
		s.stallNext--
		s.stalled[hash] = true
	}
	return hash, nil
}

// WaitForReceipt mines empty blocks until the requested depth is reached.
// Stalled receipts block until ctx is done.
func (c *Chain) WaitForReceipt(ctx context.Context, txHash common.Hash, confirmations uint64) (*types.Receipt, error) {
	s := c.s
	s.mu.Lock()
	receipt, ok := s.receipts[txHash]
	stalled := s.stalled[txHash]
	if ok && !stalled {
		if confirmations == 0 {
			confirmations = 1
		}
		if target := receipt.BlockNumber.Uint64() + confirmations - 1; s.head < target {
			s.head = target
		}
	}
	s.mu.Unlock()
	if !ok || stalled {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	out := *receipt
	return &out, nil
}

func (c *Chain) CallRead(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out, _, err := s.simulate(c.from, to, data)
	if err != nil {
		var r *revert
		if errors.As(err, &r) {
			return nil, &chain.RevertError{Data: r.data}
		}
		return nil, err
	}
	return out, nil
}

func (c *Chain) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if acc, ok := c.s.accounts[addr]; ok {
		return bytes.Clone(acc.code), nil
	}
	return nil, nil
}

func (c *Chain) StorageAt(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if acc, ok := c.s.accounts[addr]; ok {
		return acc.slots[slot], nil
	}
	return common.Hash{}, nil
}

func (s *state) programFor(creation []byte) *Program {
	for _, p := range s.programs {
		if bytes.Equal(p.CreationCode, creation) {
			return p
		}
	}
	return nil
}

func (s *state) create(from common.Address, nonce uint64, creation []byte) (common.Address, error) {
	p := s.programFor(creation)
	if p == nil {
		return common.Address{}, &revert{}
	}
	addr := crypto.CreateAddress(from, nonce)
	s.accounts[addr] = &account{
		code:    bytes.Clone(p.RuntimeCode),
		program: p,
		storage: make(map[string]any),
		slots:   make(map[common.Hash]common.Hash),
	}
	return addr, nil
}

// execute runs a transaction. Nothing is written when it reverts.
func (s *state) execute(from common.Address, to common.Address, input []byte) ([]*types.Log, error) {
	if to == s.factory {
		return s.factoryCall(from, input)
	}
	_, writes, err := s.simulate(from, to, input)
	if err != nil {
		return nil, err
	}
	if acc := s.accounts[to]; acc != nil {
		maps.Copy(acc.storage, writes)
	}
	return nil, nil
}

// simulate runs a call without applying its writes.
func (s *state) simulate(from common.Address, to common.Address, input []byte) ([]byte, map[string]any, error) {
	if to == s.factory {
		if !bytes.HasPrefix(input, proxy.FuncAdminOf.Selector[:]) {
			return nil, nil, &revert{}
		}
		var p common.Address
		if err := proxy.FuncAdminOf.DecodeArgs(input, &p); err != nil {
			return nil, nil, &revert{}
		}
		return common.LeftPadBytes(s.admins[p].Bytes(), 32), nil, nil
	}
	acc, ok := s.accounts[to]
	if !ok {
		// calls to accounts without code succeed and return nothing
		return nil, nil, nil
	}
	program := acc.program
	if bytes.Equal(acc.code, proxyRuntime) {
		impl := s.accounts[proxy.AddressFromSlot(acc.slots[proxy.ImplementationSlot])]
		if impl == nil || impl.program == nil {
			return nil, nil, &revert{}
		}
		program = impl.program
	}
	if program == nil {
		return nil, nil, &revert{}
	}
	return program.call(acc.storage, input)
}

func (s *state) factoryCall(from common.Address, input []byte) ([]*types.Log, error) {
	switch {
	case bytes.HasPrefix(input, proxy.FuncDeployAndCall.Selector[:]):
		var (
			impl, admin common.Address
			data        []byte
		)
		if err := proxy.FuncDeployAndCall.DecodeArgs(input, &impl, &admin, &data); err != nil {
			return nil, &revert{}
		}
		implAcc := s.accounts[impl]
		if implAcc == nil || implAcc.program == nil {
			return nil, &revert{}
		}
		storage := make(map[string]any)
		if len(data) > 0 {
			_, writes, err := implAcc.program.call(storage, data)
			if err != nil {
				return nil, err
			}
			maps.Copy(storage, writes)
		}
		proxyAddr := crypto.CreateAddress(s.factory, s.nonces[s.factory])
		s.nonces[s.factory]++
		s.accounts[proxyAddr] = &account{
			code:    bytes.Clone(proxyRuntime),
			storage: storage,
			slots: map[common.Hash]common.Hash{
				proxy.ImplementationSlot: common.BytesToHash(impl.Bytes()),
			},
		}
		s.admins[proxyAddr] = admin
		return []*types.Log{s.log(proxy.EventDeployed.Topic0, proxyAddr, impl, admin)}, nil
	case bytes.HasPrefix(input, proxy.FuncUpgrade.Selector[:]):
		var proxyAddr, impl common.Address
		if err := proxy.FuncUpgrade.DecodeArgs(input, &proxyAddr, &impl); err != nil {
			return nil, &revert{}
		}
		if admin, ok := s.admins[proxyAddr]; !ok || admin != from {
			return nil, &revert{data: proxy.SelectorUnauthorized}
		}
		s.accounts[proxyAddr].slots[proxy.ImplementationSlot] = common.BytesToHash(impl.Bytes())
		return []*types.Log{s.log(proxy.EventUpgraded.Topic0, proxyAddr, impl)}, nil
	default:
		return nil, &revert{}
	}
}

func (s *state) log(topic0 common.Hash, indexed ...common.Address) *types.Log {
	topics := []common.Hash{topic0}
	for _, a := range indexed {
		topics = append(topics, common.BytesToHash(a.Bytes()))
	}
	return &types.Log{Address: s.factory, Topics: topics}
}
