package serializer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ValentinKolb/dbatch/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Request:  [1 op][1 flags][4 timeout]?[4 count] entries...
// Entry:    [1 readAttr][str16 ns][str16 set][1 len][digest][2 count] str16 bin names...
// Response: [1 op][1 flags][4 code][str32 err]?[4 count] rows...
// Row:      [str16 ns][1 len][digest][4 code][4 gen][4 exp][2 count] ([str16 name][bytes32 value])...
//
// All integers are big endian.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasTimeout byte = 1 << 0
	hasErr     byte = 1 << 1
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) SerializeRequest(req *common.BatchRequest) ([]byte, error) {
	if len(req.Entries) > math.MaxUint32 {
		return nil, fmt.Errorf("too many entries: %d", len(req.Entries))
	}

	w := newWriter(b.requestSize(req))
	w.putByte(byte(req.OpCode))

	var flags byte
	if req.TimeoutMs > 0 {
		flags |= hasTimeout
	}
	w.putByte(flags)
	if flags&hasTimeout != 0 {
		w.putUint32(req.TimeoutMs)
	}

	w.putUint32(uint32(len(req.Entries)))
	for i := range req.Entries {
		e := &req.Entries[i]
		if err := checkDigest(e.Digest); err != nil {
			return nil, err
		}
		if len(e.BinNames) > math.MaxUint16 {
			return nil, fmt.Errorf("too many bin names: %d", len(e.BinNames))
		}
		w.putByte(e.ReadAttr)
		if err := w.putString16(e.Namespace); err != nil {
			return nil, err
		}
		if err := w.putString16(e.SetName); err != nil {
			return nil, err
		}
		w.putBytes8(e.Digest)
		w.putUint16(uint16(len(e.BinNames)))
		for _, name := range e.BinNames {
			if err := w.putString16(name); err != nil {
				return nil, err
			}
		}
	}
	return w.buf, nil
}

func (b binarySerializerImpl) DeserializeRequest(data []byte, req *common.BatchRequest) error {
	r := &reader{data: data}

	req.OpCode = common.OpCode(r.byte("op code"))
	flags := r.byte("flags")
	req.TimeoutMs = 0
	if flags&hasTimeout != 0 {
		req.TimeoutMs = r.uint32("timeout")
	}

	count := r.uint32("entry count")
	if r.err != nil {
		return r.err
	}
	// every entry takes at least 7 bytes, reject counts the data cannot hold
	if int(count) > r.remaining()/7 {
		return fmt.Errorf("data too short for %d entries", count)
	}

	req.Entries = make([]common.BatchEntry, count)
	for i := range req.Entries {
		e := &req.Entries[i]
		e.ReadAttr = r.byte("read attr")
		e.Namespace = r.string16("namespace")
		e.SetName = r.string16("set name")
		e.Digest = r.bytes8("digest")
		names := int(r.uint16("bin count"))
		if names > 0 {
			e.BinNames = make([]string, 0, min(names, r.remaining()/2))
			for j := 0; j < names && r.err == nil; j++ {
				e.BinNames = append(e.BinNames, r.string16("bin name"))
			}
		}
		if r.err != nil {
			return r.err
		}
	}
	return r.err
}

func (b binarySerializerImpl) SerializeResponse(resp *common.BatchResponse) ([]byte, error) {
	w := newWriter(b.responseSize(resp))
	w.putByte(byte(resp.OpCode))

	var flags byte
	if resp.Err != "" {
		flags |= hasErr
	}
	w.putByte(flags)
	w.putUint32(uint32(resp.ResultCode))
	if flags&hasErr != 0 {
		w.putUint32(uint32(len(resp.Err)))
		w.putRaw([]byte(resp.Err))
	}

	w.putUint32(uint32(len(resp.Rows)))
	for i := range resp.Rows {
		row := &resp.Rows[i]
		if err := checkDigest(row.Digest); err != nil {
			return nil, err
		}
		if len(row.Bins) > math.MaxUint16 {
			return nil, fmt.Errorf("too many bins: %d", len(row.Bins))
		}
		if err := w.putString16(row.Namespace); err != nil {
			return nil, err
		}
		w.putBytes8(row.Digest)
		w.putUint32(uint32(row.ResultCode))
		w.putUint32(row.Generation)
		w.putUint32(row.Expiration)
		w.putUint16(uint16(len(row.Bins)))
		for _, bin := range row.Bins {
			if err := w.putString16(bin.Name); err != nil {
				return nil, err
			}
			w.putUint32(uint32(len(bin.Value)))
			w.putRaw(bin.Value)
		}
	}
	return w.buf, nil
}

func (b binarySerializerImpl) DeserializeResponse(data []byte, resp *common.BatchResponse) error {
	r := &reader{data: data}

	resp.OpCode = common.OpCode(r.byte("op code"))
	flags := r.byte("flags")
	resp.ResultCode = int32(r.uint32("result code"))
	resp.Err = ""
	if flags&hasErr != 0 {
		resp.Err = string(r.raw(int(r.uint32("error length")), "error"))
	}

	count := r.uint32("row count")
	if r.err != nil {
		return r.err
	}
	// every row takes at least 17 bytes
	if int(count) > r.remaining()/17 {
		return fmt.Errorf("data too short for %d rows", count)
	}

	resp.Rows = nil
	if count > 0 {
		resp.Rows = make([]common.BatchRow, count)
	}
	for i := range resp.Rows {
		row := &resp.Rows[i]
		row.Namespace = r.string16("namespace")
		row.Digest = r.bytes8("digest")
		row.ResultCode = int32(r.uint32("row result code"))
		row.Generation = r.uint32("generation")
		row.Expiration = r.uint32("expiration")
		bins := int(r.uint16("bin count"))
		if bins > 0 {
			row.Bins = make([]common.Bin, 0, min(bins, r.remaining()/6))
			for j := 0; j < bins && r.err == nil; j++ {
				name := r.string16("bin name")
				value := r.raw(int(r.uint32("bin value length")), "bin value")
				row.Bins = append(row.Bins, common.Bin{Name: name, Value: value})
			}
		}
		if r.err != nil {
			return r.err
		}
	}
	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// requestSize calculates the total size needed to serialize req
func (b binarySerializerImpl) requestSize(req *common.BatchRequest) int {
	// op + flags + entry count
	size := 1 + 1 + 4
	if req.TimeoutMs > 0 {
		size += 4
	}
	for i := range req.Entries {
		e := &req.Entries[i]
		size += 1 + 2 + len(e.Namespace) + 2 + len(e.SetName) + 1 + len(e.Digest) + 2
		for _, name := range e.BinNames {
			size += 2 + len(name)
		}
	}
	return size
}

// responseSize calculates the total size needed to serialize resp
func (b binarySerializerImpl) responseSize(resp *common.BatchResponse) int {
	// op + flags + code + row count
	size := 1 + 1 + 4 + 4
	if resp.Err != "" {
		size += 4 + len(resp.Err)
	}
	for i := range resp.Rows {
		row := &resp.Rows[i]
		size += 2 + len(row.Namespace) + 1 + len(row.Digest) + 4 + 4 + 4 + 2
		for _, bin := range row.Bins {
			size += 2 + len(bin.Name) + 4 + len(bin.Value)
		}
	}
	return size
}

func checkDigest(digest []byte) error {
	if len(digest) > math.MaxUint8 {
		return fmt.Errorf("digest too long: %d bytes", len(digest))
	}
	return nil
}

// writer appends to a buffer allocated once with the precomputed size
type writer struct {
	buf []byte
}

func newWriter(size int) *writer {
	return &writer{buf: make([]byte, 0, size)}
}

func (w *writer) putByte(v byte) {
	w.buf = append(w.buf, v)
}

func (w *writer) putUint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *writer) putUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *writer) putRaw(v []byte) {
	w.buf = append(w.buf, v...)
}

func (w *writer) putBytes8(v []byte) {
	w.putByte(byte(len(v)))
	w.putRaw(v)
}

func (w *writer) putString16(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	w.putUint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// reader consumes data front to back. The first failure sticks, later reads
// return zero values.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) take(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", what)
		return nil
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *reader) byte(what string) byte {
	b := r.take(1, what)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint16(what string) uint16 {
	b := r.take(2, what)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) uint32(what string) uint32 {
	b := r.take(4, what)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// raw returns a copy of the next n bytes
func (r *reader) raw(n int, what string) []byte {
	b := r.take(n, what)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (r *reader) bytes8(what string) []byte {
	return r.raw(int(r.byte(what+" length")), what)
}

func (r *reader) string16(what string) string {
	return string(r.take(int(r.uint16(what+" length")), what))
}
