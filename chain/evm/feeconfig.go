package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/settle/fee"
)

const feeConfigABI = `[
	{"name":"feePercentage","type":"function","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"feeThreshold","type":"function","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// FeePolicy reads the live fee configuration from the settlement contract
// at contractAddr. The returned policy mirrors what the contract enforces
// on-chain, so off-chain previews and on-chain deductions agree.
func (c *Client) FeePolicy(ctx context.Context, contractAddr string) (fee.Policy, error) {
	if !common.IsHexAddress(contractAddr) {
		return fee.Policy{}, fmt.Errorf("evm: invalid contract address %q", contractAddr)
	}

	parsed, err := abi.JSON(strings.NewReader(feeConfigABI))
	if err != nil {
		return fee.Policy{}, fmt.Errorf("evm: parse abi: %w", err)
	}
	addr := common.HexToAddress(contractAddr)

	bps, err := c.readUint(ctx, parsed, addr, "feePercentage")
	if err != nil {
		return fee.Policy{}, err
	}
	threshold, err := c.readUint(ctx, parsed, addr, "feeThreshold")
	if err != nil {
		return fee.Policy{}, err
	}

	if !bps.IsInt64() || bps.Int64() > fee.BasisPointDenominator {
		return fee.Policy{}, fmt.Errorf("evm: contract feePercentage %s out of range", bps)
	}

	p := fee.Policy{BasisPoints: bps.Int64()}
	if threshold.Sign() > 0 {
		p.Threshold = threshold
	}
	return p, nil
}

func (c *Client) readUint(ctx context.Context, parsed abi.ABI, addr common.Address, method string) (*big.Int, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("evm: pack %s: %w", method, err)
	}

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("evm: call %s: %w", method, err)
	}

	vals, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("evm: unpack %s: %w", method, err)
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("evm: %s returned %T, want uint256", method, vals[0])
	}
	return v, nil
}
