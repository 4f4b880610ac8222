package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roach88/rlchess/internal/ir"
)

var mask250 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// Selector returns the entrypoint selector: Keccak-256 of the name masked
// to 250 bits, as a felt.
func Selector(entrypoint string) string {
	n := new(big.Int).SetBytes(crypto.Keccak256([]byte(entrypoint)))
	return ir.FeltHex(n.And(n, mask250))
}

// Multicall encodes one call in the account's __execute__ calldata layout:
// [call_count, to, selector, calldata_len, calldata...].
func Multicall(to, entrypoint string, calldata []string) []string {
	out := make([]string, 0, 4+len(calldata))
	out = append(out, "0x1", ir.NormalizeFelt(to), Selector(entrypoint), ir.FeltHex(big.NewInt(int64(len(calldata)))))
	for _, c := range calldata {
		out = append(out, ir.NormalizeFelt(c))
	}
	return out
}
