// Package domain holds the core value types shared across branchback's
// storage, tree, and checkout layers.
package domain

import (
	"fmt"
	"strings"

	"github.com/jepayne1138/branchback/internal/digest"
)

// Kind distinguishes a tree entry naming a file from one naming a
// subdirectory.
type Kind string

const (
	// KindBlob is a regular file entry.
	KindBlob Kind = "blob"
	// KindTree is a subdirectory entry.
	KindTree Kind = "tree"
)

// Entry is one line of a tree object: the kind and digest of a child,
// plus its name within the parent directory.
type Entry struct {
	Kind   Kind
	Digest string
	Name   string
}

// EncodeLine renders e in the exact on-disk tree line format: a 4-char
// left-justified kind, a single space, the 40-hex digest, a single
// space, and the entry name — kind in columns 0-4, digest in columns
// 5-44, name starting at column 46.
func (e Entry) EncodeLine() string {
	return fmt.Sprintf("%-4s %s %s", string(e.Kind), e.Digest, e.Name)
}

// ParseLine parses one tree object line using the same fixed columns
// EncodeLine writes. It does not trim the name: trailing whitespace in
// a file name is significant and must round-trip.
func ParseLine(line string) (Entry, error) {
	if len(line) < 46 {
		return Entry{}, fmt.Errorf("domain: tree line too short: %q", line)
	}
	kind := strings.TrimRight(line[0:4], " ")
	d := line[5:45]
	name := line[46:]

	if kind != string(KindBlob) && kind != string(KindTree) {
		return Entry{}, fmt.Errorf("domain: unknown entry kind %q", kind)
	}
	if !digest.Valid(d) {
		return Entry{}, fmt.Errorf("domain: malformed digest in tree line: %q", d)
	}
	if name == "" {
		return Entry{}, fmt.Errorf("domain: empty entry name in tree line")
	}

	return Entry{Kind: Kind(kind), Digest: d, Name: name}, nil
}

// EncodeTree renders a sorted list of entries into the byte content of
// a tree object: each entry's line joined by "\n", with a trailing
// "\n" — an empty tree therefore serializes to the single byte "\n".
func EncodeTree(entries []Entry) []byte {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.EncodeLine())
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

// DecodeTree parses the byte content of a tree object back into its
// entries.
func DecodeTree(content []byte) ([]Entry, error) {
	text := strings.TrimSuffix(string(content), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		e, err := ParseLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
