package preflight

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAllAgainstTempDir(t *testing.T) {
	c := New()
	results := c.RunAll(context.Background(), t.TempDir())
	require.Len(t, results, 5)

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.True(t, byName["data directory writable"].Passed)
	assert.Equal(t, Critical, byName["data directory writable"].Severity)
	assert.Equal(t, Advisory, byName["available memory"].Severity)
}

func TestDataDirWritableCreatesMissingDir(t *testing.T) {
	dir := t.TempDir() + "/nested/data"
	passed, detail := checkDataDirWritable(context.Background(), dir)
	assert.True(t, passed, detail)
}

func TestHasCriticalFailures(t *testing.T) {
	c := New()
	assert.False(t, c.HasCriticalFailures([]Result{
		{Name: "a", Severity: Critical, Passed: true},
		{Name: "b", Severity: Advisory, Passed: false},
	}), "advisory failures never block")
	assert.True(t, c.HasCriticalFailures([]Result{
		{Name: "a", Severity: Critical, Passed: false},
	}))
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	c := New(WithOutput(&buf))
	c.PrintResults([]Result{
		{Name: "disk headroom", Severity: Critical, Passed: true, Detail: "lots"},
		{Name: "open file limit", Severity: Advisory, Passed: false, Detail: "soft limit 256"},
	})
	out := buf.String()
	assert.Contains(t, out, "ok   disk headroom\n")
	assert.NotContains(t, out, "lots", "passing details hidden unless verbose")
	assert.Contains(t, out, "warn open file limit: soft limit 256")
}

func TestPrintResultsVerbose(t *testing.T) {
	var buf bytes.Buffer
	c := New(WithOutput(&buf), WithVerbose(true))
	c.PrintResults([]Result{
		{Name: "disk headroom", Severity: Critical, Passed: true, Detail: "lots"},
	})
	assert.Contains(t, buf.String(), "disk headroom: lots")
}

func TestRunAllHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := New().RunAll(ctx, t.TempDir())
	assert.Empty(t, results)
}
