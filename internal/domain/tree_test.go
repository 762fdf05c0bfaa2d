package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry_EncodeLineColumns(t *testing.T) {
	e := Entry{Kind: KindBlob, Digest: strings.Repeat("a", 40), Name: "main.go"}
	line := e.EncodeLine()

	assert.Equal(t, "blob", line[0:4])
	assert.Equal(t, " ", string(line[4]))
	assert.Equal(t, strings.Repeat("a", 40), line[5:45])
	assert.Equal(t, " ", string(line[45]))
	assert.Equal(t, "main.go", line[46:])
}

func TestParseLine_RoundTrips(t *testing.T) {
	e := Entry{Kind: KindTree, Digest: strings.Repeat("b", 40), Name: "subdir"}
	parsed, err := ParseLine(e.EncodeLine())
	require.NoError(t, err)
	assert.Equal(t, e, parsed)
}

func TestParseLine_RejectsUnknownKind(t *testing.T) {
	line := "file " + strings.Repeat("a", 40) + " x"
	_, err := ParseLine(line)
	assert.Error(t, err)
}

func TestParseLine_RejectsMalformedDigest(t *testing.T) {
	line := "blob " + strings.Repeat("z", 40) + " x"
	_, err := ParseLine(line)
	assert.Error(t, err)
}

func TestEncodeTree_EmptyTreeIsSingleNewline(t *testing.T) {
	assert.Equal(t, []byte("\n"), EncodeTree(nil))
}

func TestEncodeDecodeTree_RoundTrips(t *testing.T) {
	entries := []Entry{
		{Kind: KindBlob, Digest: strings.Repeat("1", 40), Name: "a.txt"},
		{Kind: KindTree, Digest: strings.Repeat("2", 40), Name: "sub"},
	}
	content := EncodeTree(entries)
	decoded, err := DecodeTree(content)
	require.NoError(t, err)
	assert.Equal(t, entries, decoded)
}

func TestDecodeTree_Empty(t *testing.T) {
	decoded, err := DecodeTree([]byte("\n"))
	require.NoError(t, err)
	assert.Empty(t, decoded)
}
