package utils

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var (
	NullEthereumAddress    = "0000000000000000000000000000000000000000"
	NullEthereumAddressHex = fmt.Sprintf("0x%s", NullEthereumAddress)
)

var hexAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func AreAddressesEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

func IsValidHexAddress(s string) bool {
	return hexAddressPattern.MatchString(s) && !AreAddressesEqual(s, NullEthereumAddressHex)
}

func ConvertBytesToString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func ConvertStringToBytes(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func Map[A any, B any](coll []A, mapper func(i A, index uint64) B) []B {
	out := make([]B, len(coll))
	for i, item := range coll {
		out[i] = mapper(item, uint64(i))
	}
	return out
}
