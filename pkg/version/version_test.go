package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringWithoutCommit(t *testing.T) {
	origVersion, origCommit := Version, Commit
	defer func() { Version, Commit = origVersion, origCommit }()

	Version, Commit = "v1.2.3", ""
	assert.Equal(t, "v1.2.3", String())
}

func TestStringWithCommit(t *testing.T) {
	origVersion, origCommit := Version, Commit
	defer func() { Version, Commit = origVersion, origCommit }()

	Version, Commit = "v1.2.3", "abc1234"
	assert.Equal(t, "v1.2.3 (abc1234)", String())
}

func TestDefaultIsDev(t *testing.T) {
	assert.Equal(t, "dev", Version)
}
