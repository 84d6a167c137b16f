package escrow

import (
	"math/big"
	"sync"
)

// BalanceVault owns per-payee withdrawable balances.
type BalanceVault struct {
	mu       sync.Mutex
	balances map[Address]*big.Int
}

// NewBalanceVault creates an empty vault.
func NewBalanceVault() *BalanceVault {
	return &BalanceVault{balances: make(map[Address]*big.Int)}
}

// Credit adds amount to addr's balance.
func (v *BalanceVault) Credit(addr Address, amount *big.Int) error {
	if err := checkAmount("credit", amount); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	bal, ok := v.balances[addr]
	if !ok {
		bal = new(big.Int)
		v.balances[addr] = bal
	}
	bal.Add(bal, amount)
	return nil
}

// Withdraw zeroes addr's balance and returns what it held. An address with
// no entry withdraws 0.
func (v *BalanceVault) Withdraw(addr Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	bal, ok := v.balances[addr]
	if !ok {
		return new(big.Int)
	}
	out := new(big.Int).Set(bal)
	bal.SetInt64(0)
	return out
}

// Peek returns addr's balance without changing it.
func (v *BalanceVault) Peek(addr Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return copyAmount(v.balances[addr])
}

// NonZero returns copies of all positive balances.
func (v *BalanceVault) NonZero() map[Address]*big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[Address]*big.Int, len(v.balances))
	for a, bal := range v.balances {
		if bal.Sign() > 0 {
			out[a] = new(big.Int).Set(bal)
		}
	}
	return out
}
