// Package datastore computes how long a data store stays alive on chain.
//
// A data store prepays storage with a deposit. Each epoch costs the payload
// size plus a fixed base, and the first two epochs of a deposit are not
// counted towards its lifetime. All arithmetic is done on big integers since
// deposits are uint256 values on the wire.
package datastore

import (
	"math/big"
	"strconv"

	"github.com/mrz1836/blockscope/internal/chain"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

const (
	// MaxDataStoreSize is the largest payload, in bytes, a data store may hold.
	MaxDataStoreSize = 2097152

	// BaseDatasizeConst is the per-epoch overhead added to the payload size.
	BaseDatasizeConst = 376

	// EpochLength is the number of blocks in an epoch.
	EpochLength = 1024

	// minEpochs is the number of paid epochs that do not extend the lifetime.
	minEpochs = 2
)

// Expiration is the breakdown of an expiration computation.
type Expiration struct {
	DataSize     int      `json:"data_size"`
	CostPerEpoch *big.Int `json:"cost_per_epoch"`
	Deposit      *big.Int `json:"deposit"`
	Epochs       *big.Int `json:"epochs"`
	IssuedAt     *big.Int `json:"issued_at"`
	ExpiresAt    *big.Int `json:"expires_at"`
}

// ComputeExpirationEpoch returns the last epoch a data store is alive for.
// payloadHex and depositHex are hex strings with an optional 0x prefix.
// A nil issuedAt is treated as zero.
func ComputeExpirationEpoch(payloadHex, depositHex string, issuedAt *big.Int) (*big.Int, error) {
	exp, err := ComputeExpirationHex(payloadHex, depositHex, issuedAt)
	if err != nil {
		return nil, err
	}
	return exp.ExpiresAt, nil
}

// ComputeExpirationHex is ComputeExpiration over hex-encoded payload and
// deposit.
func ComputeExpirationHex(payloadHex, depositHex string, issuedAt *big.Int) (*Expiration, error) {
	payload, err := chain.DecodeHex(payloadHex)
	if err != nil {
		return nil, scopeerr.WithDetails(err, map[string]string{"field": "payload"})
	}

	// Size is checked before the deposit so an oversized payload fails
	// the same way whatever deposit accompanies it.
	if err := checkSize(len(payload)); err != nil {
		return nil, err
	}

	deposit, err := chain.HexToBig(depositHex)
	if err != nil {
		return nil, scopeerr.WithDetails(err, map[string]string{"field": "deposit"})
	}

	return ComputeExpiration(len(payload), deposit, issuedAt)
}

// ComputeExpiration computes the expiration of a payload of payloadBytes
// bytes paid for with deposit and issued at epoch issuedAt.
func ComputeExpiration(payloadBytes int, deposit, issuedAt *big.Int) (*Expiration, error) {
	if payloadBytes < 0 {
		return nil, scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{
			"data_size": strconv.Itoa(payloadBytes),
		})
	}
	if err := checkSize(payloadBytes); err != nil {
		return nil, err
	}
	if deposit == nil {
		deposit = new(big.Int)
	}
	if issuedAt == nil {
		issuedAt = new(big.Int)
	}
	if deposit.Sign() < 0 || issuedAt.Sign() < 0 {
		return nil, scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{
			"reason": "deposit and issued-at must not be negative",
		})
	}

	cost := CostPerEpoch(payloadBytes)
	epochs := new(big.Int).Quo(deposit, cost)

	if epochs.Cmp(big.NewInt(minEpochs)) < 0 {
		return nil, scopeerr.WithDetails(scopeerr.ErrInsufficientDeposit, map[string]string{
			"deposit":  deposit.String(),
			"required": RequiredDeposit(payloadBytes, minEpochs).String(),
		})
	}

	expiresAt := new(big.Int).Sub(epochs, big.NewInt(minEpochs))
	expiresAt.Add(expiresAt, issuedAt)

	return &Expiration{
		DataSize:     payloadBytes,
		CostPerEpoch: cost,
		Deposit:      new(big.Int).Set(deposit),
		Epochs:       epochs,
		IssuedAt:     new(big.Int).Set(issuedAt),
		ExpiresAt:    expiresAt,
	}, nil
}

// CostPerEpoch returns the deposit consumed per epoch by a payload of dataSize bytes.
func CostPerEpoch(dataSize int) *big.Int {
	return big.NewInt(int64(dataSize) + BaseDatasizeConst)
}

// RequiredDeposit returns the smallest deposit that keeps a payload of
// dataSize bytes alive for epochs paid epochs.
func RequiredDeposit(dataSize int, epochs int64) *big.Int {
	return new(big.Int).Mul(CostPerEpoch(dataSize), big.NewInt(epochs))
}

// EpochOf returns the epoch a block height falls in. Epochs are numbered
// from 1; height 0 precedes the first epoch.
func EpochOf(height uint32) uint32 {
	epoch := height / EpochLength
	if height%EpochLength != 0 {
		epoch++
	}
	return epoch
}

// IsExpired reports whether a data store expiring at expiration is gone by currentEpoch.
func IsExpired(expiration *big.Int, currentEpoch uint32) bool {
	if expiration == nil {
		return false
	}
	return expiration.Cmp(new(big.Int).SetUint64(uint64(currentEpoch))) < 0
}

// RemainingEpochs returns how many epochs are left until expiration,
// or zero once it has passed.
func RemainingEpochs(expiration *big.Int, currentEpoch uint32) *big.Int {
	if expiration == nil {
		return new(big.Int)
	}
	left := new(big.Int).Sub(expiration, new(big.Int).SetUint64(uint64(currentEpoch)))
	if left.Sign() < 0 {
		return new(big.Int)
	}
	return left
}

func checkSize(dataSize int) error {
	if dataSize > MaxDataStoreSize {
		return scopeerr.WithDetails(scopeerr.ErrPayloadTooLarge, map[string]string{
			"data_size": strconv.Itoa(dataSize),
			"max":       strconv.Itoa(MaxDataStoreSize),
		})
	}
	return nil
}
