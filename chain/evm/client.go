// Package evm implements chain.Client for EVM-compatible networks using
// go-ethereum's RPC bindings. Transfers are plain ERC-20 transfer calls
// signed locally and broadcast through the configured JSON-RPC endpoint.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/xraph/settle/chain"
)

const erc20ABI = `[
	{"name":"transfer","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

// Client submits ERC-20 transfers to one EVM network.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	erc20   abi.ABI
}

// Dial connects to an EVM JSON-RPC endpoint and binds the client to chainID.
// The id is verified against the node.
func Dial(ctx context.Context, rpcURL string, chainID int64) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", rpcURL, err)
	}

	nodeID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("evm: chain id: %w", err)
	}
	if nodeID.Int64() != chainID {
		eth.Close()
		return nil, fmt.Errorf("evm: node reports chain %d, want %d", nodeID.Int64(), chainID)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("evm: parse abi: %w", err)
	}

	return &Client{eth: eth, chainID: big.NewInt(chainID), erc20: parsed}, nil
}

var _ chain.Client = (*Client)(nil)

// ChainID implements chain.Client.
func (c *Client) ChainID() string {
	return c.chainID.String()
}

// Transfer implements chain.Client. Errors before SendTransaction mean the
// transaction was never broadcast; an error from SendTransaction itself is
// ambiguous and callers must treat the outcome as unknown.
func (c *Client) Transfer(ctx context.Context, req chain.TransferRequest) (string, error) {
	signer, ok := req.Signer.(*Signer)
	if !ok {
		return "", fmt.Errorf("evm: signer must be an evm.Signer, got %T", req.Signer)
	}
	if !common.IsHexAddress(req.TokenAddress) {
		return "", fmt.Errorf("evm: invalid token address %q", req.TokenAddress)
	}
	if !common.IsHexAddress(req.To) {
		return "", fmt.Errorf("evm: invalid recipient address %q", req.To)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return "", fmt.Errorf("evm: non-positive transfer amount")
	}

	data, err := c.erc20.Pack("transfer", common.HexToAddress(req.To), req.Amount)
	if err != nil {
		return "", fmt.Errorf("evm: pack transfer: %w", err)
	}

	from := signer.address
	token := common.HexToAddress(req.TokenAddress)

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("evm: nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("evm: gas price: %w", err)
	}
	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &token,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("evm: estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, token, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), signer.key)
	if err != nil {
		return "", fmt.Errorf("evm: sign: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		// The node may have accepted the transaction before failing the
		// response; surface the hash so the caller can confirm.
		return signed.Hash().Hex(), fmt.Errorf("evm: broadcast: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// TransactionExists implements chain.Client.
func (c *Client) TransactionExists(ctx context.Context, txHash string) (bool, error) {
	_, _, err := c.eth.TransactionByHash(ctx, common.HexToHash(txHash))
	if err == ethereum.NotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("evm: transaction lookup: %w", err)
	}
	return true, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// ParseChainID converts a decimal chain id string to int64.
func ParseChainID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("evm: invalid chain id %q: %w", s, err)
	}
	return id, nil
}
