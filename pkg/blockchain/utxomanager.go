package blockchain

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc/v3"
	"go.uber.org/zap"
)

// Ledger is what the disbursement flow needs from the node
type Ledger interface {
	FetchUnspent(ctx context.Context, address string, color common.Color) ([]*common.UnspentOutput, error)
	Submit(ctx context.Context, raw []byte) (string, error)
}

var _ Ledger = (*Client)(nil)

// node response
type unspent struct {
	Output struct {
		Address string         `json:"address"`
		Value   *common.Amount `json:"value"`
		Color   common.Color   `json:"color"`
	} `json:"output"`
	Outpoint *outpoint `json:"outpoint"`
}

// outpoint accepts both the packed hex string and the {hash, index} object
type outpoint struct {
	common.Outpoint
}

func (o *outpoint) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		op, err := common.OutpointFromRaw(raw)
		if err != nil {
			return err
		}
		o.Outpoint = op
		return nil
	}

	var obj struct {
		Hash  string `json:"hash"`
		TxID  string `json:"txId"`
		Index uint32 `json:"index"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Hash == "" {
		obj.Hash = obj.TxID
	}
	hash, err := common.HashFromHex(obj.Hash)
	if err != nil {
		return err
	}
	o.Hash = hash
	o.Index = obj.Index
	return nil
}

// FetchUnspent gets all unspent outputs of color owned by address, in the order the node reports them
func (c *Client) FetchUnspent(ctx context.Context, address string, color common.Color) ([]*common.UnspentOutput, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.Debug("fetching unspent outputs", zap.String("address", address), zap.Uint32("color", uint32(color)))

	resp, err := c.rpc.Call(ctx, MethodUnspent, []interface{}{address, color})
	if err != nil {
		return nil, unavailable(ctx, MethodUnspent, err)
	}
	if resp.Error != nil {
		return nil, &UnavailableError{Method: MethodUnspent, Err: resp.Error}
	}

	var records []unspent
	if err := resp.GetObject(&records); err != nil {
		return nil, &UnavailableError{Method: MethodUnspent, Err: errors.Wrap(err, "failed to decode unspent outputs")}
	}

	// copy UTXOs
	utxos := make([]*common.UnspentOutput, 0, len(records))
	for i := range records {
		r := &records[i]
		if r.Output.Value == nil || r.Outpoint == nil {
			return nil, &UnavailableError{Method: MethodUnspent, Err: errors.Errorf("unspent output %d has no value or outpoint", i)}
		}
		utxos = append(utxos, &common.UnspentOutput{
			Outpoint: r.Outpoint.Outpoint,
			Output:   common.NewOutput(&r.Output.Value.Int, r.Output.Address, r.Output.Color),
		})
	}

	c.logger.Debug("got unspent outputs", zap.String("address", address), zap.Int("count", len(utxos)))
	return utxos, nil
}

// Submit broadcasts a signed transaction and returns the id the node assigned to it
func (c *Client) Submit(ctx context.Context, raw []byte) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.rpc.Call(ctx, MethodSendRawTransaction, []interface{}{"0x" + hex.EncodeToString(raw)})
	// the node may answer a rejection with an HTTP error status and a JSON-RPC error body
	if resp != nil && resp.Error != nil {
		c.logger.Warn("transaction rejected", zap.Int("code", resp.Error.Code), zap.String("reason", resp.Error.Message))
		return "", rejected(resp.Error)
	}
	if err != nil {
		return "", unavailable(ctx, MethodSendRawTransaction, err)
	}

	var txID string
	if err := resp.GetObject(&txID); err != nil {
		return "", &UnavailableError{Method: MethodSendRawTransaction, Err: errors.Wrap(err, "failed to decode transaction id")}
	}
	if txID == "" {
		return "", &UnavailableError{Method: MethodSendRawTransaction, Err: errors.New("empty transaction id")}
	}

	c.logger.Info("transaction submitted", zap.String("tx", txID))
	return txID, nil
}

func rejected(e *jsonrpc.RPCError) error {
	return &RejectedError{Code: e.Code, Reason: e.Message, Data: e.Data}
}

// unavailable prefers the context error, so callers can match context.Canceled
// and context.DeadlineExceeded regardless of how the transport reported it
func unavailable(ctx context.Context, method string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &UnavailableError{Method: method, Err: errors.Wrap(ctxErr, err.Error())}
	}
	return &UnavailableError{Method: method, Err: err}
}
