package ledger

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// canonicalJSON produces the deterministic encoding used for content-address
// hashing. The Canonical handle sorts map keys, so two nodes computing the
// hash of the same block or transaction always agree.
func canonicalJSON(v interface{}) ([]byte, error) {
	jh := new(codec.JsonHandle)
	jh.Canonical = true

	b := bytes.NewBuffer([]byte{})
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}
