package common

import (
	"errors"
	"math/big"
)

var (
	ErrInvalidUint256 = errors.New("invalid uint256")

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// ParseUint256 parses a base 10 string that must fit an unsigned 256 bit integer.
func ParseUint256(s string) (*big.Int, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, ErrInvalidUint256
	}

	if i.Sign() < 0 || i.Cmp(maxUint256) > 0 {
		return nil, ErrInvalidUint256
	}

	return i, nil
}
