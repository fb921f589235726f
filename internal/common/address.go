package common

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// LowerAddress is the only transformation applied to addresses before they
// are stored: the lowercase hex form.
func LowerAddress(addr string) string {
	return strings.ToLower(addr)
}

func IsSameHexAddress(a, b string) bool {
	return strings.ToLower(a) == strings.ToLower(b)
}

// IsHexAddress reports whether addr is a 0x prefixed 20 byte hex address.
func IsHexAddress(addr string) bool {
	return strings.HasPrefix(addr, "0x") && common.IsHexAddress(addr)
}

func ChecksumAddress(addr string) string {
	address := common.HexToAddress(addr)

	return address.Hex()
}
