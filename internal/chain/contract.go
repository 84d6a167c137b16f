// Package chain talks to the on-chain escrow contract. Contract implements
// escrow.Authority, so the escrow engine can delegate every operation to the
// chain through escrow.NewDelegated.
package chain

import (
	"context"
	"crypto/ecdsa"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/sudo-init-do/mintaro/internal/escrow"
)

//go:embed escrow.abi.json
var escrowABI string

// RPC is the part of ethclient.Client the contract client uses.
type RPC interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Config describes the deployed contract and the account that signs for it.
type Config struct {
	Contract common.Address
	Key      *ecdsa.PrivateKey

	// ChainID is fetched from the node when nil.
	ChainID *big.Int

	// PollInterval is how often receipts are polled. Defaults to 2s.
	PollInterval time.Duration

	Logger *slog.Logger
}

// Contract is an escrow.Authority backed by the escrow contract. Writes are
// signed with the configured key, which makes its account the client of
// every job created and the only balance Withdraw can drain.
type Contract struct {
	rpc     RPC
	abi     abi.ABI
	address common.Address
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	poll    time.Duration
	logger  *slog.Logger

	// sendMu keeps nonce assignment and submission in order.
	sendMu sync.Mutex
}

var _ escrow.Authority = (*Contract)(nil)

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, url string, cfg Config) (*Contract, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return New(ctx, client, cfg)
}

// New creates a contract client over rpc.
func New(ctx context.Context, rpc RPC, cfg Config) (*Contract, error) {
	if cfg.Key == nil {
		return nil, errors.New("signing key is required")
	}
	if cfg.Contract == (common.Address{}) {
		return nil, errors.New("contract address is required")
	}
	parsed, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}
	chainID := cfg.ChainID
	if chainID == nil {
		if chainID, err = rpc.ChainID(ctx); err != nil {
			return nil, fmt.Errorf("fetch chain id: %w", err)
		}
	}
	c := &Contract{
		rpc:     rpc,
		abi:     parsed,
		address: cfg.Contract,
		key:     cfg.Key,
		from:    crypto.PubkeyToAddress(cfg.Key.PublicKey),
		chainID: chainID,
		poll:    cfg.PollInterval,
		logger:  cfg.Logger,
	}
	if c.poll <= 0 {
		c.poll = 2 * time.Second
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Sender returns the signing account.
func (c *Contract) Sender() escrow.Address {
	return toAddress(c.from)
}

func (c *Contract) CreateJob(ctx context.Context, freelancer escrow.Address) (escrow.JobID, error) {
	receipt, err := c.transact(ctx, nil, "createJob", common.HexToAddress(string(freelancer)))
	if err != nil {
		return 0, err
	}
	l, err := c.findEvent(receipt, "JobCreated")
	if err != nil {
		return 0, err
	}
	id, err := topicUint(l, 1)
	if err != nil {
		return 0, err
	}
	return escrow.JobID(id), nil
}

func (c *Contract) CreateMilestone(ctx context.Context, job escrow.JobID, amount *big.Int) (escrow.MilestoneID, error) {
	receipt, err := c.transact(ctx, amount, "createMilestone", jobArg(job), amount)
	if err != nil {
		return 0, err
	}
	l, err := c.findEvent(receipt, "MilestoneCreated")
	if err != nil {
		return 0, err
	}
	id, err := topicUint(l, 2)
	if err != nil {
		return 0, err
	}
	return escrow.MilestoneID(id), nil
}

func (c *Contract) ApproveMilestone(ctx context.Context, job escrow.JobID, id escrow.MilestoneID) error {
	_, err := c.transact(ctx, nil, "approveMilestone", jobArg(job), milestoneArg(id))
	return err
}

func (c *Contract) ReleasePayment(ctx context.Context, job escrow.JobID, id escrow.MilestoneID) (*big.Int, error) {
	receipt, err := c.transact(ctx, nil, "releasePayment", jobArg(job), milestoneArg(id))
	if err != nil {
		return nil, err
	}
	return c.eventAmount(receipt, "PaymentReleased")
}

func (c *Contract) Withdraw(ctx context.Context) (*big.Int, error) {
	receipt, err := c.transact(ctx, nil, "withdraw")
	if err != nil {
		return nil, err
	}
	return c.eventAmount(receipt, "Withdrawn")
}

func (c *Contract) GetJob(ctx context.Context, job escrow.JobID) (escrow.JobRecord, error) {
	out, err := c.call(ctx, "getJob", jobArg(job))
	if err != nil {
		return escrow.JobRecord{}, err
	}
	if len(out) != 4 {
		return escrow.JobRecord{}, fmt.Errorf("getJob returned %d values", len(out))
	}
	client, ok1 := out[0].(common.Address)
	freelancer, ok2 := out[1].(common.Address)
	locked, ok3 := out[2].(*big.Int)
	count, ok4 := out[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return escrow.JobRecord{}, errors.New("getJob returned unexpected types")
	}
	if !count.IsUint64() {
		return escrow.JobRecord{}, fmt.Errorf("getJob milestone count %s overflows uint64", count)
	}
	return escrow.JobRecord{
		Client:         toAddress(client),
		Freelancer:     toAddress(freelancer),
		Locked:         locked,
		MilestoneCount: count.Uint64(),
	}, nil
}

func (c *Contract) GetMilestone(ctx context.Context, job escrow.JobID, id escrow.MilestoneID) (escrow.MilestoneRecord, error) {
	out, err := c.call(ctx, "getMilestone", jobArg(job), milestoneArg(id))
	if err != nil {
		return escrow.MilestoneRecord{}, err
	}
	if len(out) != 3 {
		return escrow.MilestoneRecord{}, fmt.Errorf("getMilestone returned %d values", len(out))
	}
	amount, ok1 := out[0].(*big.Int)
	approved, ok2 := out[1].(bool)
	released, ok3 := out[2].(bool)
	if !ok1 || !ok2 || !ok3 {
		return escrow.MilestoneRecord{}, errors.New("getMilestone returned unexpected types")
	}
	return escrow.MilestoneRecord{Amount: amount, Approved: approved, Released: released}, nil
}

func (c *Contract) Available(ctx context.Context, addr escrow.Address) (*big.Int, error) {
	return c.callUint(ctx, "available", common.HexToAddress(string(addr)))
}

func (c *Contract) JobCount(ctx context.Context) (uint64, error) {
	n, err := c.callUint(ctx, "jobCount")
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("jobCount %s overflows uint64", n)
	}
	return n.Uint64(), nil
}

func (c *Contract) callUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", method, out[0])
	}
	return v, nil
}

func (c *Contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{From: c.from, To: &c.address, Data: input}
	out, err := c.rpc.CallContract(ctx, msg, nil)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, &escrow.Rejection{Reason: reason}
		}
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// transact signs and submits a call to method and waits for it to be mined.
// Reverts are caught while estimating gas, before anything is sent; a
// transaction that still reverts on chain is replayed to recover the reason.
func (c *Contract) transact(ctx context.Context, value *big.Int, method string, args ...any) (*types.Receipt, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	if value == nil {
		value = new(big.Int)
	}
	msg := ethereum.CallMsg{From: c.from, To: &c.address, Value: value, Data: input}

	gas, err := c.rpc.EstimateGas(ctx, msg)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, &escrow.Rejection{Reason: reason}
		}
		return nil, fmt.Errorf("estimate gas for %s: %w", method, err)
	}
	gas += gas / 5

	signed, err := c.send(ctx, msg, gas)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	c.logger.Info("escrow transaction sent",
		"method", method,
		"tx", signed.Hash().Hex(),
		"nonce", signed.Nonce(),
	)

	receipt, err := c.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		reason := "transaction reverted"
		if _, callErr := c.rpc.CallContract(ctx, msg, receipt.BlockNumber); callErr != nil {
			if r, ok := revertReason(callErr); ok && r != "" {
				reason = r
			}
		}
		return nil, &escrow.Rejection{Reason: reason}
	}
	return receipt, nil
}

func (c *Contract) send(ctx context.Context, msg ethereum.CallMsg, gas uint64) (*types.Transaction, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.rpc.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       msg.To,
		Value:    msg.Value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     msg.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}

// waitMined polls for the receipt of hash. Cancelling ctx stops waiting but
// cannot recall a submitted transaction.
func (c *Contract) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		receipt, err := c.rpc.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Contract) findEvent(receipt *types.Receipt, name string) (*types.Log, error) {
	ev, ok := c.abi.Events[name]
	if !ok {
		return nil, fmt.Errorf("unknown event %s", name)
	}
	for _, l := range receipt.Logs {
		if l.Address == c.address && len(l.Topics) > 0 && l.Topics[0] == ev.ID {
			return l, nil
		}
	}
	return nil, fmt.Errorf("receipt %s has no %s event", receipt.TxHash.Hex(), name)
}

func (c *Contract) eventAmount(receipt *types.Receipt, name string) (*big.Int, error) {
	l, err := c.findEvent(receipt, name)
	if err != nil {
		return nil, err
	}
	values, err := c.abi.Unpack(name, l.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", name, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s carries %d values", name, len(values))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s amount is %T", name, values[0])
	}
	return amount, nil
}

func topicUint(l *types.Log, i int) (uint64, error) {
	if len(l.Topics) <= i {
		return 0, fmt.Errorf("log has %d topics, want index %d", len(l.Topics), i)
	}
	v := new(big.Int).SetBytes(l.Topics[i].Bytes())
	if !v.IsUint64() {
		return 0, fmt.Errorf("topic %d value %s overflows uint64", i, v)
	}
	return v.Uint64(), nil
}

func jobArg(id escrow.JobID) *big.Int { return new(big.Int).SetUint64(uint64(id)) }

func milestoneArg(id escrow.MilestoneID) *big.Int { return new(big.Int).SetUint64(uint64(id)) }

func toAddress(a common.Address) escrow.Address {
	return escrow.Address(strings.ToLower(a.Hex()))
}
