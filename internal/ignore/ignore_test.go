package ignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBareNameMatchesAnyElement(t *testing.T) {
	m := NewMatcher("node_modules")
	assert.True(t, m.MatchDir("/home/u/proj/node_modules"))
	assert.True(t, m.MatchDir("/home/u/proj/node_modules/sub"))
	assert.False(t, m.MatchDir("/home/u/proj/src"))
}

func TestDirSuffixPattern(t *testing.T) {
	m := NewMatcher("build/")
	assert.True(t, m.MatchDir("/repo/build"))
	assert.False(t, m.MatchDir("/repo/builder"))
}

func TestGlobElement(t *testing.T) {
	m := NewMatcher("cache-*")
	assert.True(t, m.MatchDir("/x/cache-v2"))
	assert.False(t, m.MatchDir("/x/cachev2"))
}

func TestDoublestarPattern(t *testing.T) {
	m := NewMatcher("**/target")
	assert.True(t, m.MatchDir("/code/rust/proj/target"))
	assert.False(t, m.MatchDir("/code/rust/proj/src"))
}

func TestAnchoredRelativePattern(t *testing.T) {
	m := NewMatcher("vendor/cache")
	assert.True(t, m.MatchDir("/repo/vendor/cache"))
	assert.False(t, m.MatchDir("/repo/cache"))
	assert.False(t, m.MatchDir("/repo/vendor"))
}

func TestAbsolutePattern(t *testing.T) {
	m := NewMatcher("/tmp/scratch")
	assert.True(t, m.MatchDir("/tmp/scratch"))
	assert.False(t, m.MatchDir("/home/u/tmp/scratch"))
}

func TestNegationLastRuleWins(t *testing.T) {
	m := NewMatcher(".*", "!.config")
	assert.True(t, m.MatchDir("/home/u/.cache"))
	assert.False(t, m.MatchDir("/home/u/.config"))
}

func TestEmptyAndCommentEntriesDropped(t *testing.T) {
	m := NewMatcher("", "  ", "# comment", "!")
	assert.False(t, m.MatchDir("/anything"))
}

func TestEmptyMatcher(t *testing.T) {
	assert.False(t, NewMatcher().MatchDir("/a/b"))
}
