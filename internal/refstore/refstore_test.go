package refstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteAndReadBranch(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())

	require.NoError(t, s.WriteBranch("main", strings.Repeat("a", 40)))

	got, err := s.ReadBranch("main")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 40), got)
}

func TestStore_ReadUnknownBranch(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())

	_, err := s.ReadBranch("nope")
	assert.ErrorIs(t, err, ErrUnknownBranch)
}

func TestStore_HEADAttachedWhenBranchExists(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())
	require.NoError(t, s.WriteBranch("main", strings.Repeat("a", 40)))
	require.NoError(t, s.WriteHEAD("main"))

	head, err := s.ReadHEAD()
	require.NoError(t, err)
	assert.False(t, head.Detached)
	assert.Equal(t, "main", head.Branch)
}

func TestStore_HEADDetachedWhenDigestHasNoBranch(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())
	require.NoError(t, s.WriteHEADDetached(strings.Repeat("b", 40)))

	head, err := s.ReadHEAD()
	require.NoError(t, err)
	assert.True(t, head.Detached)
	assert.Equal(t, strings.Repeat("b", 40), head.Digest)
}

func TestStore_ListBranches(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())
	require.NoError(t, s.WriteBranch("main", strings.Repeat("a", 40)))
	require.NoError(t, s.WriteBranch("dev", strings.Repeat("b", 40)))

	names, err := s.ListBranches()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main", "dev"}, names)
}

func TestValidateBranchName_RejectsDigestShapedNames(t *testing.T) {
	err := ValidateBranchName(strings.Repeat("a", 40))
	assert.ErrorIs(t, err, ErrInvalidBranchName)
}

func TestValidateBranchName_RejectsPathSeparators(t *testing.T) {
	err := ValidateBranchName("feature/x")
	assert.ErrorIs(t, err, ErrInvalidBranchName)
}
