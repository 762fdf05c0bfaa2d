package objectstore

import "errors"

// ErrMissingObject indicates no object file exists for a digest.
var ErrMissingObject = errors.New("objectstore: object not found")

// ErrCorruptObject indicates an object file exists but cannot be
// interpreted as either fresh content or a delta envelope.
var ErrCorruptObject = errors.New("objectstore: object is corrupt")

// ErrDeltaChainBroken indicates a delta envelope points at an origin
// digest that cannot itself be resolved.
var ErrDeltaChainBroken = errors.New("objectstore: delta chain is broken")

// ErrDeltaChainTooDeep indicates a delta chain exceeded maxChainDepth
// without reaching a fresh object, which otherwise would resolve as an
// infinite loop (e.g. two envelopes pointing at each other).
var ErrDeltaChainTooDeep = errors.New("objectstore: delta chain exceeds maximum depth")
