package memory

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// state is the full ledger content. A transaction works on a clone and
// swaps it in on commit.
type state struct {
	native     map[common.Address]*uint256.Int
	tokens     map[common.Address]map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]map[common.Address]*uint256.Int // token -> owner -> spender
	nfts       map[common.Address]map[uint256.Int]common.Address
	operators  map[common.Address]map[common.Address]map[common.Address]bool // token -> owner -> operator
}

func newState() *state {
	return &state{
		native:     make(map[common.Address]*uint256.Int),
		tokens:     make(map[common.Address]map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*uint256.Int),
		nfts:       make(map[common.Address]map[uint256.Int]common.Address),
		operators:  make(map[common.Address]map[common.Address]map[common.Address]bool),
	}
}

func (s *state) clone() *state {
	c := newState()
	for a, v := range s.native {
		c.native[a] = v.Clone()
	}
	for tok, bals := range s.tokens {
		m := make(map[common.Address]*uint256.Int, len(bals))
		for a, v := range bals {
			m[a] = v.Clone()
		}
		c.tokens[tok] = m
	}
	for tok, owners := range s.allowances {
		om := make(map[common.Address]map[common.Address]*uint256.Int, len(owners))
		for o, spenders := range owners {
			sm := make(map[common.Address]*uint256.Int, len(spenders))
			for sp, v := range spenders {
				sm[sp] = v.Clone()
			}
			om[o] = sm
		}
		c.allowances[tok] = om
	}
	for tok, ids := range s.nfts {
		m := make(map[uint256.Int]common.Address, len(ids))
		for id, o := range ids {
			m[id] = o
		}
		c.nfts[tok] = m
	}
	for tok, owners := range s.operators {
		om := make(map[common.Address]map[common.Address]bool, len(owners))
		for o, ops := range owners {
			m := make(map[common.Address]bool, len(ops))
			for op, ok := range ops {
				m[op] = ok
			}
			om[o] = m
		}
		c.operators[tok] = om
	}
	return c
}

func (s *state) nativeOf(a common.Address) *uint256.Int {
	if v, ok := s.native[a]; ok {
		return v
	}
	return new(uint256.Int)
}

func (s *state) tokenOf(token, a common.Address) *uint256.Int {
	if v, ok := s.tokens[token][a]; ok {
		return v
	}
	return new(uint256.Int)
}

func (s *state) setToken(token, a common.Address, v *uint256.Int) {
	m, ok := s.tokens[token]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		s.tokens[token] = m
	}
	m[a] = v
}

func (s *state) allowance(token, owner, spender common.Address) *uint256.Int {
	if v, ok := s.allowances[token][owner][spender]; ok {
		return v
	}
	return new(uint256.Int)
}

func (s *state) setAllowance(token, owner, spender common.Address, v *uint256.Int) {
	om, ok := s.allowances[token]
	if !ok {
		om = make(map[common.Address]map[common.Address]*uint256.Int)
		s.allowances[token] = om
	}
	sm, ok := om[owner]
	if !ok {
		sm = make(map[common.Address]*uint256.Int)
		om[owner] = sm
	}
	sm[spender] = v
}

func (s *state) setOwner(token common.Address, id *uint256.Int, owner common.Address) {
	m, ok := s.nfts[token]
	if !ok {
		m = make(map[uint256.Int]common.Address)
		s.nfts[token] = m
	}
	m[*id] = owner
}

func (s *state) setOperator(token, owner, operator common.Address, approved bool) {
	om, ok := s.operators[token]
	if !ok {
		om = make(map[common.Address]map[common.Address]bool)
		s.operators[token] = om
	}
	m, ok := om[owner]
	if !ok {
		m = make(map[common.Address]bool)
		om[owner] = m
	}
	m[operator] = approved
}

// moveNative transfers amount between accounts and reports whether from
// could cover it.
func (s *state) moveNative(from, to common.Address, amount *uint256.Int) bool {
	bal := s.nativeOf(from)
	if bal.Lt(amount) {
		return false
	}
	s.native[from] = new(uint256.Int).Sub(bal, amount)
	s.native[to] = new(uint256.Int).Add(s.nativeOf(to), amount)
	return true
}

func (s *state) moveToken(token, from, to common.Address, amount *uint256.Int) bool {
	bal := s.tokenOf(token, from)
	if bal.Lt(amount) {
		return false
	}
	s.setToken(token, from, new(uint256.Int).Sub(bal, amount))
	s.setToken(token, to, new(uint256.Int).Add(s.tokenOf(token, to), amount))
	return true
}
