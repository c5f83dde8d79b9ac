package server

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ValentinKolb/dbatch/lib/store"
	"github.com/ValentinKolb/dbatch/rpc/common"
)

// NewIStoreServerAdapter creates an adapter answering batch reads from a
// store.IStore. Requests with more than maxBatchKeys entries are rejected,
// zero means no limit.
func NewIStoreServerAdapter(maxBatchKeys int) IRPCServerAdapter {
	return &iStoreServerAdapterImpl{
		maxBatchKeys: maxBatchKeys,
		now:          time.Now,
	}
}

type iStoreServerAdapterImpl struct {
	maxBatchKeys int
	now          func() time.Time
}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.BatchRequest, s store.IStore) *common.BatchResponse {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse(req.OpCode, common.ResultServerError, errors.New("handler: store is nil"))
	}

	switch req.OpCode {
	case common.OpBatchRead:
		return adapter.batchRead(req, s)
	default:
		return common.NewErrorResponse(req.OpCode, common.ResultParameterError,
			fmt.Errorf("RPC IStoreAdapter - Unsupported op code: %s", req.OpCode))
	}
}

// batchRead answers every entry with one row, in request order
func (adapter *iStoreServerAdapterImpl) batchRead(req *common.BatchRequest, s store.IStore) *common.BatchResponse {
	if adapter.maxBatchKeys > 0 && len(req.Entries) > adapter.maxBatchKeys {
		return common.NewErrorResponse(req.OpCode, common.ResultBatchMaxRequests,
			fmt.Errorf("batch of %d keys exceeds limit of %d", len(req.Entries), adapter.maxBatchKeys))
	}

	// Namespaces are checked up front, an unknown one fails the whole request
	for i := range req.Entries {
		if ns := req.Entries[i].Namespace; !s.HasNamespace(ns) {
			return common.NewErrorResponse(req.OpCode, common.ResultNamespaceNotFound,
				fmt.Errorf("namespace %q is not served by this node", ns))
		}
	}

	var deadline time.Time
	if req.TimeoutMs > 0 {
		deadline = adapter.now().Add(time.Duration(req.TimeoutMs) * time.Millisecond)
	}

	rows := make([]common.BatchRow, len(req.Entries))
	for i := range req.Entries {
		if !deadline.IsZero() && adapter.now().After(deadline) {
			return common.NewErrorResponse(req.OpCode, common.ResultTimeout,
				fmt.Errorf("timed out after %d of %d keys", i, len(req.Entries)))
		}
		rows[i] = readRow(&req.Entries[i], s)
	}
	return common.NewBatchReadResponse(rows)
}

// readRow reads a single entry from the store
func readRow(entry *common.BatchEntry, s store.IStore) common.BatchRow {
	row := common.BatchRow{
		Namespace: entry.Namespace,
		Digest:    entry.Digest,
	}

	rec, loaded, err := s.Get(entry.Namespace, entry.Digest)
	switch {
	case err != nil:
		row.ResultCode = rowCode(err)
		return row
	case !loaded:
		row.ResultCode = common.ResultKeyNotFound
		return row
	}

	row.Generation = rec.Generation
	row.Expiration = rec.Expiration
	row.Bins = selectBins(rec, entry.ReadAttr, entry.BinNames)
	return row
}

// selectBins returns the bins an entry asked for. All bins are returned in
// name order, named bins in the order of the request. Missing bins are skipped.
func selectBins(rec *store.Record, attr uint8, names []string) []common.Bin {
	if attr&common.ReadAttrNoBinData != 0 {
		return nil
	}

	if attr&common.ReadAttrGetAll != 0 || len(names) == 0 {
		bins := make([]common.Bin, 0, len(rec.Bins))
		for name, value := range rec.Bins {
			bins = append(bins, common.Bin{Name: name, Value: value})
		}
		sort.Slice(bins, func(i, j int) bool { return bins[i].Name < bins[j].Name })
		return bins
	}

	bins := make([]common.Bin, 0, len(names))
	for _, name := range names {
		if value, ok := rec.Bins[name]; ok {
			bins = append(bins, common.Bin{Name: name, Value: value})
		}
	}
	return bins
}

// rowCode maps a store error to the result code of a row
func rowCode(err error) int32 {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		switch storeErr.Code {
		case store.RetCInvalidArgument:
			return common.ResultParameterError
		case store.RetCNamespaceNotFound:
			return common.ResultNamespaceNotFound
		}
	}
	return common.ResultServerError
}
