package objectstore

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// envelope is what gets written into an older object's file once a
// newer version of the same logical content is stored. It carries the
// digest of the object the patch is relative to (always the newer
// object) and the patch bytes themselves. An object file is never
// tagged as "fresh" or "delta" directly: reading resolves the
// ambiguity by comparing the file's own hash against the digest used
// to look it up.
type envelope struct {
	Origin string `msgpack:"origin"`
	Patch  []byte `msgpack:"patch"`
}

func encodeEnvelope(e envelope) ([]byte, error) {
	encoded, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("objectstore: encoding delta envelope: %w", err)
	}
	return encoded, nil
}

// decodeEnvelope attempts to interpret raw as a delta envelope. It
// returns ok=false (not an error) when raw does not parse as one, so
// callers can fall back to treating raw as literal content.
func decodeEnvelope(raw []byte) (e envelope, ok bool) {
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		return envelope{}, false
	}
	if e.Origin == "" {
		return envelope{}, false
	}
	return e, true
}
