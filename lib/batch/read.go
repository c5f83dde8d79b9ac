package batch

// --------------------------------------------------------------------------
// Read List
// --------------------------------------------------------------------------

// readListVariant reads a list of BatchRead requests. Each request carries its
// own bin selection. Rows are kept in records until the call succeeds, so a
// failed call leaves the requests untouched.
type readListVariant struct {
	reads   []*BatchRead
	records []*Record
	onItem  func(*BatchRead)
	done    func(Result[[]*BatchRead])
	end     func(error)
}

func (v *readListVariant) name() string {
	if v.onItem != nil {
		return "read-list-stream"
	}
	return "read-list"
}

func (v *readListVariant) entry(idx int) Entry {
	r := v.reads[idx]
	return Entry{
		Index:    idx,
		Key:      r.Key,
		BinNames: r.BinNames,
		ReadAttr: r.readAttr(),
	}
}

func (v *readListVariant) checkRow(int, *Row) error { return nil }

func (v *readListVariant) handleRow(idx int, _ *Key, row *Row) {
	var rec *Record
	if row.ResultCode == ResultOK {
		rec = row.record()
	}
	if v.onItem != nil {
		item := *v.reads[idx]
		item.Record = rec
		v.onItem(&item)
		return
	}
	v.records[idx] = rec
}

func (v *readListVariant) succeed() {
	if v.end != nil {
		v.end(nil)
		return
	}
	for i, r := range v.reads {
		r.Record = v.records[i]
	}
	v.done(Result[[]*BatchRead]{Value: v.reads})
}

func (v *readListVariant) fail(err error) {
	if v.end != nil {
		v.end(err)
		return
	}
	v.done(Result[[]*BatchRead]{Err: err})
}

// ReadList reads all requests and calls done once with the filled in list.
// Record is set to nil for requests whose record does not exist. The requests
// are only written on env.Loop right before done is called with success; a
// failed call leaves them as they were. The call returns immediately.
func ReadList(env *Env, policy *Policy, reads []*BatchRead, done func(Result[[]*BatchRead])) {
	execute(env, policy, readKeys(reads), &readListVariant{
		reads:   reads,
		records: make([]*Record, len(reads)),
		done:    done,
	})
}

// ReadListStream reads all requests and calls onItem for each request as soon
// as its row arrives, in no particular order. onItem receives a copy of the
// request with Record set, reads itself is never modified. end is called
// exactly once after the last item, with nil on success.
func ReadListStream(env *Env, policy *Policy, reads []*BatchRead, onItem func(*BatchRead), end func(error)) {
	execute(env, policy, readKeys(reads), &readListVariant{reads: reads, onItem: onItem, end: end})
}

func readKeys(reads []*BatchRead) []*Key {
	keys := make([]*Key, len(reads))
	for i, r := range reads {
		if r != nil {
			keys[i] = r.Key
		}
	}
	return keys
}

// --------------------------------------------------------------------------
// Get
// --------------------------------------------------------------------------

// getVariant reads the same bins of every key.
type getVariant struct {
	keys     []*Key
	binNames []string
	readAttr ReadAttr

	records []*Record
	onItem  func(*Key, *Record)
	done    func(Result[[]*Record])
	end     func(error)
}

func newGetVariant(keys []*Key, binNames []string, readAttr ReadAttr) *getVariant {
	if readAttr == 0 {
		if len(binNames) == 0 {
			readAttr = ReadAttrRead | ReadAttrGetAll
		} else {
			readAttr = ReadAttrRead
		}
	}
	return &getVariant{
		keys:     keys,
		binNames: binNames,
		readAttr: readAttr,
	}
}

func (v *getVariant) name() string {
	if v.onItem != nil {
		return "get-stream"
	}
	return "get"
}

func (v *getVariant) entry(idx int) Entry {
	return Entry{
		Index:    idx,
		Key:      v.keys[idx],
		BinNames: v.binNames,
		ReadAttr: v.readAttr,
	}
}

func (v *getVariant) checkRow(int, *Row) error { return nil }

func (v *getVariant) handleRow(idx int, key *Key, row *Row) {
	var rec *Record
	if row.ResultCode == ResultOK {
		rec = row.record()
	}
	if v.onItem != nil {
		v.onItem(key, rec)
		return
	}
	v.records[idx] = rec
}

func (v *getVariant) succeed() {
	if v.end != nil {
		v.end(nil)
		return
	}
	v.done(Result[[]*Record]{Value: v.records})
}

func (v *getVariant) fail(err error) {
	if v.end != nil {
		v.end(err)
		return
	}
	v.done(Result[[]*Record]{Err: err})
}

// GetArray reads binNames of all keys and calls done once with one record per
// key, in key order. A nil record means the key does not exist. If binNames
// is empty all bins are read. readAttr overrides the derived read flags when
// non zero.
func GetArray(env *Env, policy *Policy, keys []*Key, binNames []string, readAttr ReadAttr, done func(Result[[]*Record])) {
	v := newGetVariant(keys, binNames, readAttr)
	v.records = make([]*Record, len(keys))
	v.done = done
	execute(env, policy, keys, v)
}

// GetStream reads binNames of all keys and calls onItem per key as rows
// arrive. end is called exactly once after the last item.
func GetStream(env *Env, policy *Policy, keys []*Key, binNames []string, readAttr ReadAttr, onItem func(*Key, *Record), end func(error)) {
	v := newGetVariant(keys, binNames, readAttr)
	v.onItem = onItem
	v.end = end
	execute(env, policy, keys, v)
}
