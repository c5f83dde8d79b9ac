package batch

// existsVariant checks the existence of keys. Nodes must answer with header
// only rows, any bin data is a protocol violation.
type existsVariant struct {
	keys []*Key

	exists []bool
	onItem func(*Key, bool)
	done   func(Result[[]bool])
	end    func(error)
}

func (v *existsVariant) name() string {
	if v.onItem != nil {
		return "exists-stream"
	}
	return "exists"
}

func (v *existsVariant) entry(idx int) Entry {
	return Entry{
		Index:    idx,
		Key:      v.keys[idx],
		ReadAttr: ReadAttrRead | ReadAttrNoBinData,
	}
}

func (v *existsVariant) checkRow(idx int, row *Row) error {
	if row.OpCount > 0 {
		return &UnrequestedDataError{Index: idx, OpCount: row.OpCount}
	}
	return nil
}

func (v *existsVariant) handleRow(idx int, key *Key, row *Row) {
	found := row.ResultCode == ResultOK
	if v.onItem != nil {
		v.onItem(key, found)
		return
	}
	v.exists[idx] = found
}

func (v *existsVariant) succeed() {
	if v.end != nil {
		v.end(nil)
		return
	}
	v.done(Result[[]bool]{Value: v.exists})
}

func (v *existsVariant) fail(err error) {
	if v.end != nil {
		v.end(err)
		return
	}
	v.done(Result[[]bool]{Err: err})
}

// ExistsArray checks all keys and calls done once with one flag per key, in
// key order.
func ExistsArray(env *Env, policy *Policy, keys []*Key, done func(Result[[]bool])) {
	execute(env, policy, keys, &existsVariant{
		keys:   keys,
		exists: make([]bool, len(keys)),
		done:   done,
	})
}

// ExistsStream checks all keys and calls onItem per key as rows arrive. end
// is called exactly once after the last item.
func ExistsStream(env *Env, policy *Policy, keys []*Key, onItem func(*Key, bool), end func(error)) {
	execute(env, policy, keys, &existsVariant{
		keys:   keys,
		onItem: onItem,
		end:    end,
	})
}
