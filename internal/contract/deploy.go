package contract

import (
	"context"
	"math/big"

	"github.com/roach88/rlchess/internal/ir"
)

// Deploy deploys an instance of classHash through the universal deployer,
// paid for by signer. Returns the transaction hash.
func (c *Client) Deploy(ctx context.Context, signer Signer, classHash, salt string, constructorCalldata []string) (string, error) {
	calldata := make([]string, 0, 4+len(constructorCalldata))
	calldata = append(calldata,
		ir.NormalizeFelt(classHash),
		ir.NormalizeFelt(salt),
		"0x0", // not unique: address depends only on class hash, salt and calldata
		ir.FeltHex(big.NewInt(int64(len(constructorCalldata)))),
	)
	calldata = append(calldata, constructorCalldata...)
	return c.ExecuteAt(ctx, signer, UniversalDeployer, deployEntrypoint, calldata)
}
