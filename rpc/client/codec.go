package client

import (
	"fmt"
	"math"

	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/ValentinKolb/dbatch/rpc/common"
	"github.com/ValentinKolb/dbatch/rpc/serializer"
)

// codec translates between the batch engine and the wire messages. It
// implements batch.Encoder and batch.Decoder.
type codec struct {
	serializer serializer.IRPCSerializer
}

func newCodec(s serializer.IRPCSerializer) *codec {
	return &codec{serializer: s}
}

func (c *codec) EncodeBatchRead(req *batch.Request) ([]byte, error) {
	entries := make([]common.BatchEntry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = common.BatchEntry{
			Namespace: e.Key.Namespace,
			SetName:   e.Key.SetName,
			Digest:    e.Key.Digest,
			BinNames:  e.BinNames,
			ReadAttr:  uint8(e.ReadAttr),
		}
	}
	return c.serializer.SerializeRequest(common.NewBatchReadRequest(timeoutMs(req), entries))
}

func (c *codec) DecodeBatchRead(buf []byte) ([]batch.Row, error) {
	var resp common.BatchResponse
	if err := c.serializer.DeserializeResponse(buf, &resp); err != nil {
		return nil, &batch.ParseError{Msg: err.Error()}
	}

	// The node rejected the whole request
	if resp.ResultCode != common.ResultOK {
		return nil, batch.NewError(batch.ResultCode(resp.ResultCode), resp.Err)
	}
	if resp.OpCode != common.OpBatchRead {
		return nil, &batch.ParseError{Msg: fmt.Sprintf("unexpected op code %s in batch read response", resp.OpCode)}
	}

	rows := make([]batch.Row, len(resp.Rows))
	for i, r := range resp.Rows {
		rows[i] = batch.Row{
			Namespace:  r.Namespace,
			Digest:     r.Digest,
			ResultCode: batch.ResultCode(r.ResultCode),
			Generation: r.Generation,
			Expiration: r.Expiration,
			OpCount:    len(r.Bins),
		}
		if len(r.Bins) > 0 {
			rows[i].Bins = make(map[string][]byte, len(r.Bins))
			for _, bin := range r.Bins {
				rows[i].Bins[bin.Name] = bin.Value
			}
		}
	}
	return rows, nil
}

// timeoutMs converts the attempt timeout for the node, rounding up so a
// short timeout never becomes "no timeout"
func timeoutMs(req *batch.Request) uint32 {
	if req.Timeout <= 0 {
		return 0
	}
	ms := (req.Timeout.Nanoseconds() + 999_999) / 1_000_000
	return uint32(min(ms, math.MaxUint32))
}
