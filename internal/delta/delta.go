package delta

import (
	"bytes"
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Diff computes patch bytes that transform source into target. The
// returned bytes are opaque to callers and must be passed to Patch
// along with the same source to recover target.
func Diff(source, target []byte) ([]byte, error) {
	computer := NewComputer(NewFixedSizeChunker())
	d, err := computer.Compute(context.Background(), bytes.NewReader(source), bytes.NewReader(target))
	if err != nil {
		return nil, fmt.Errorf("delta: computing diff: %w", err)
	}
	encoded, err := msgpack.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("delta: encoding diff: %w", err)
	}
	return encoded, nil
}

// Patch applies patch bytes produced by Diff to source, returning the
// original target. patch(diff(a, b), a) == b for any a, b.
func Patch(patch []byte, source []byte) ([]byte, error) {
	var d Delta
	if err := msgpack.Unmarshal(patch, &d); err != nil {
		return nil, fmt.Errorf("delta: decoding patch: %w", err)
	}
	applier := NewApplier()
	return applier.Apply(context.Background(), bytes.NewReader(source), &d)
}
