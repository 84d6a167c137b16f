package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNoChallenge  = errors.New("no pending challenge for address and message")
	ErrBadSignature = errors.New("signature does not match address")
)

type challenge struct {
	addr    string
	expires time.Time
}

// Challenges hands out one-time sign-in messages and checks the wallet
// signatures over them. Pending challenges are keyed by message, so an
// address can hold several at once and asking for a new one never cancels
// another. A challenge is consumed by the first Verify, successful or not.
type Challenges struct {
	mu      sync.Mutex
	pending map[string]challenge
	ttl     time.Duration
	now     func() time.Time
	rand    io.Reader
}

func NewChallenges(ttl time.Duration) *Challenges {
	return &Challenges{
		pending: make(map[string]challenge),
		ttl:     ttl,
		now:     time.Now,
		rand:    rand.Reader,
	}
}

// Issue creates a new challenge message for addr.
func (c *Challenges) Issue(addr string) (string, time.Time, error) {
	nonce := make([]byte, 16)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", time.Time{}, fmt.Errorf("read nonce: %w", err)
	}
	now := c.now()
	message := fmt.Sprintf("Sign in to Mintaro\n\nAddress: %s\nNonce: %s", addr, hex.EncodeToString(nonce))
	ch := challenge{addr: addr, expires: now.Add(c.ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()
	for m, p := range c.pending {
		if now.After(p.expires) {
			delete(c.pending, m)
		}
	}
	c.pending[message] = ch
	return message, ch.expires, nil
}

// Verify checks that message is a pending challenge issued to addr and that
// signature is addr's personal_sign signature over it.
func (c *Challenges) Verify(addr, message, signature string) error {
	c.mu.Lock()
	ch, ok := c.pending[message]
	if ok && ch.addr == addr {
		delete(c.pending, message)
	}
	c.mu.Unlock()

	if !ok || ch.addr != addr || c.now().After(ch.expires) {
		return ErrNoChallenge
	}
	signer, err := recoverSigner(message, signature)
	if err != nil {
		return err
	}
	if signer != addr {
		return ErrBadSignature
	}
	return nil
}

// recoverSigner returns the lowercase address that signed the EIP-191
// personal message.
func recoverSigner(message, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", ErrBadSignature
	}
	// Wallets send v as 27/28.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", ErrBadSignature
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}
