package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var jsonRPCVersion = "2.0"

type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      uint   `json:"id"`
}

type RPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint           `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// The only two views the snapshotter needs from the token contract.
const erc20AbiJson = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

type Client struct {
	Logger     *zap.Logger
	BaseUrl    string
	httpClient *http.Client
	erc20Abi   *abi.ABI
}

func NewClient(baseUrl string, l *zap.Logger) (*Client, error) {
	parsedAbi, err := abi.JSON(strings.NewReader(erc20AbiJson))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse erc20 abi")
	}

	return &Client{
		BaseUrl: baseUrl,
		Logger:  l,
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		erc20Abi: &parsedAbi,
	}, nil
}

func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	requestBody, err := json.Marshal(&RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseUrl, bytes.NewReader(requestBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "rpc request failed")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read rpc response")
	}

	rpcResponse := &RPCResponse{}
	if err := json.Unmarshal(body, rpcResponse); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal rpc response")
	}
	if rpcResponse.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResponse.Error.Code, rpcResponse.Error.Message)
	}
	return rpcResponse.Result, nil
}

func (c *Client) ethCall(ctx context.Context, to gethcommon.Address, data []byte, blockNumber uint64) ([]byte, error) {
	params := []any{
		map[string]string{
			"to":   to.Hex(),
			"data": hexutil.Encode(data),
		},
		hexutil.EncodeUint64(blockNumber),
	}

	result, err := c.call(ctx, "eth_call", params)
	if err != nil {
		return nil, err
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal eth_call result")
	}
	return hexutil.Decode(encoded)
}

func (c *Client) callUint256Method(
	ctx context.Context,
	token gethcommon.Address,
	blockNumber uint64,
	method string,
	args ...any,
) (*big.Int, error) {
	data, err := c.erc20Abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s call", method)
	}

	raw, err := c.ethCall(ctx, token, data, blockNumber)
	if err != nil {
		return nil, err
	}

	unpacked, err := c.erc20Abi.Unpack(method, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s result", method)
	}
	value, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, unpacked[0])
	}
	return value, nil
}

// BalanceOf reads a holder's token balance at the given block.
func (c *Client) BalanceOf(ctx context.Context, token, holder gethcommon.Address, blockNumber uint64) (*big.Int, error) {
	return c.callUint256Method(ctx, token, blockNumber, "balanceOf", holder)
}

// TotalSupply reads the token's total supply at the given block.
func (c *Client) TotalSupply(ctx context.Context, token gethcommon.Address, blockNumber uint64) (*big.Int, error) {
	return c.callUint256Method(ctx, token, blockNumber, "totalSupply")
}
