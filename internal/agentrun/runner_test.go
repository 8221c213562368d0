package agentrun

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-run/conclave/internal/config"
)

func echoAgent(script string, timeoutMS int) config.AgentDescriptor {
	return config.AgentDescriptor{
		ID:          "fixture",
		DisplayName: "Fixture",
		Cmd:         "sh",
		Args:        []string{"-c", script},
		InputMode:   config.ArgMode,
		TimeoutMS:   timeoutMS,
	}
}

func TestInvoke_Success(t *testing.T) {
	agent := echoAgent(`printf '{"verdict":"{PROMPT}"}'`, 1000)
	res, err := Invoke(context.Background(), nil, nil, agent, "ok", 0)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Contains(t, res.Stdout, `"verdict":"ok"`)
}

func TestInvoke_SpawnFailureNotRetried(t *testing.T) {
	agent := config.AgentDescriptor{
		ID:        "missing",
		Cmd:       "/no/such/executable-xyz",
		Args:      []string{"{PROMPT}"},
		InputMode: config.ArgMode,
		TimeoutMS: 1000,
	}
	_, err := Invoke(context.Background(), nil, nil, agent, "p", 0)
	assert.ErrorIs(t, err, ErrSpawnFailure)
}

func TestInvoke_NonzeroExit(t *testing.T) {
	agent := echoAgent(`exit 1`, 1000)
	_, err := Invoke(context.Background(), nil, nil, agent, "p", 0)
	assert.ErrorIs(t, err, ErrNonzeroExit)
}

func TestInvoke_EmptyStdoutIsNonzeroExit(t *testing.T) {
	agent := echoAgent(`true`, 1000)
	_, err := Invoke(context.Background(), nil, nil, agent, "p", 0)
	assert.ErrorIs(t, err, ErrNonzeroExit)
}

func TestInvoke_Timeout(t *testing.T) {
	agent := echoAgent(`sleep 5`, 100)
	start := time.Now()
	res, err := Invoke(context.Background(), nil, nil, agent, "p", 0)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, res.Interrupted)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestInvoke_CancellationBeforeCall(t *testing.T) {
	token := NewCancelToken()
	token.Cancel()
	agent := echoAgent(`sleep 5`, 1000)
	res, err := Invoke(context.Background(), token, nil, agent, "p", 0)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.True(t, res.Interrupted)
}

func TestInvoke_CancellationMidCall(t *testing.T) {
	token := NewCancelToken()
	agent := echoAgent(`sleep 5`, 5000)

	go func() {
		time.Sleep(150 * time.Millisecond)
		token.Cancel()
	}()

	start := time.Now()
	res, err := Invoke(context.Background(), token, nil, agent, "p", 0)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.True(t, res.Interrupted)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestInvoke_RegistersAndDeregisters(t *testing.T) {
	registry := NewRegistry()
	agent := echoAgent(`printf '{"ok":true}'`, 1000)
	_, err := Invoke(context.Background(), nil, registry, agent, "p", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, registry.Len())
}

func TestInvoke_StdinMode(t *testing.T) {
	agent := config.AgentDescriptor{
		ID:        "stdin-agent",
		Cmd:       "cat",
		Args:      []string{},
		InputMode: config.StdinMode,
		TimeoutMS: 1000,
	}
	res, err := Invoke(context.Background(), nil, nil, agent, `{"echoed":true}`, 0)
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, `"echoed":true`)
}

func TestInvoke_EffectiveTimeoutIsMaxOfAgentAndCaller(t *testing.T) {
	agent := echoAgent(`sleep 0.2 && printf '{"ok":true}'`, 50)
	res, err := Invoke(context.Background(), nil, nil, agent, "p", 1*time.Second)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestCall_SucceedsFirstTry(t *testing.T) {
	agent := echoAgent(`printf '{"vote":1}'`, 1000)
	agent.ResponseParser = "default"
	res, err := Call(context.Background(), nil, nil, agent, "p", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.JSONEq(t, `{"vote":1}`, res.ParsedJSON)
}

func TestCall_RetriesThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	marker := dir + "/attempts"
	script := `
if [ -f ` + marker + ` ]; then
  printf '{"vote":1}'
else
  touch ` + marker + `
  exit 1
fi
`
	agent := echoAgent(script, 1000)
	res, err := Call(context.Background(), nil, nil, agent, "p", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.JSONEq(t, `{"vote":1}`, res.ParsedJSON)
}

func TestCall_NoRetryOnSpawnFailure(t *testing.T) {
	agent := config.AgentDescriptor{
		ID:        "missing",
		Cmd:       "/no/such/executable-xyz",
		Args:      []string{"{PROMPT}"},
		InputMode: config.ArgMode,
		TimeoutMS: 1000,
	}
	start := time.Now()
	res, err := Call(context.Background(), nil, nil, agent, "p", 0)
	assert.ErrorIs(t, err, ErrSpawnFailure)
	assert.Equal(t, 1, res.Attempts)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCall_ExhaustsRetriesOnPersistentFailure(t *testing.T) {
	agent := echoAgent(`exit 1`, 1000)
	res, err := Call(context.Background(), nil, nil, agent, "p", 0)
	assert.True(t, errors.Is(err, ErrNonzeroExit))
	assert.Equal(t, maxAttempts, res.Attempts)
}

func TestCall_NoRetryOnCancellation(t *testing.T) {
	token := NewCancelToken()
	token.Cancel()
	agent := echoAgent(`printf '{"ok":true}'`, 1000)
	_, err := Call(context.Background(), token, nil, agent, "p", 0)
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestCall_ParseFailureRetried(t *testing.T) {
	agent := echoAgent(`printf 'not json at all'`, 1000)
	start := time.Now()
	_, err := Call(context.Background(), nil, nil, agent, "p", 0)
	assert.ErrorIs(t, err, ErrParseFailure)
	// three attempts with 1s+2s backoff between them should take >2s.
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Second)
}
