package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	decision, _, err := engine.Evaluate(ctx, map[string]interface{}{"query": "Who is Frodo?"})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)

	decision, reason, err := engine.Evaluate(ctx, map[string]interface{}{"query": "   "})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)
	assert.Equal(t, "query is empty", reason)

	decision, _, err = engine.Evaluate(ctx, map[string]interface{}{"query": strings.Repeat("a", 2001)})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)
}

func TestReloadKeepsPreviousPolicyOnError(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	assert.Error(t, engine.Reload(ctx, "package query_policy\ndecision = "))

	decision, _, err := engine.Evaluate(ctx, map[string]interface{}{"query": ""})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)
}

const blockSauron = `
package query_policy

default decision = "allow"

decision = "block" {
	contains(lower(input.query), "sauron")
}
`

func TestWatchReloadsOnWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "query_policy.rego")
	require.NoError(t, os.WriteFile(path, []byte(DefaultPolicy), 0o600))

	engine, err := LoadFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, Watch(ctx, engine, path))

	require.NoError(t, os.WriteFile(path, []byte(blockSauron), 0o600))

	assert.Eventually(t, func() bool {
		decision, _, err := engine.Evaluate(ctx, map[string]interface{}{"query": "Where is Sauron?"})
		return err == nil && decision == DecisionBlock
	}, 2*time.Second, 20*time.Millisecond)
}
