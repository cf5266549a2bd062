package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mq-rpc/config"
	"mq-rpc/message"
)

func TestParseArgs(t *testing.T) {
	args := parseArgs([]string{"1", "hello", `[1, 2]`, `{"a": true}`, `"quoted"`})
	assert.Equal(t, []any{
		float64(1),
		"hello",
		[]any{float64(1), float64(2)},
		map[string]any{"a": true},
		"quoted",
	}, args)
	assert.Empty(t, parseArgs(nil))
}

func TestParseKwargs(t *testing.T) {
	kwargs, err := parseKwargs("")
	require.NoError(t, err)
	assert.Nil(t, kwargs)

	kwargs, err = parseKwargs(`{"a": 1, "b": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1), "b": "x"}, kwargs)

	_, err = parseKwargs(`[1]`)
	assert.Error(t, err)
}

func TestPackageName(t *testing.T) {
	cases := map[string]string{
		"demo":         "demo",
		"Billing-API":  "billingapi",
		"2fa.service":  "faservice",
		"v2":           "v2",
		"---":          "stubs",
		"orders_2024x": "orders2024x",
	}
	for in, want := range cases {
		assert.Equal(t, want, packageName(in), in)
	}
}

// startDemo serves the demo methods under service on the shared memory broker.
func startDemo(t *testing.T, service string) {
	cfg, err := config.Load(config.New())
	require.NoError(t, err)
	cfg.Broker = "memory"
	cfg.Service = service

	rt := &runtime{cfg: cfg, log: zaptest.NewLogger(t)}
	s, err := newDemoServer(rt)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func execute(t *testing.T, args ...string) string {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--broker", "memory", "--log-level", "error"))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestCallCommand(t *testing.T) {
	startDemo(t, "cmdcall")

	out := execute(t, "call", "cmdcall", "add", "1", "2")
	var resp message.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.OK())
	assert.JSONEq(t, "3", string(resp.ReturnValue))
	assert.Equal(t, message.ProtocolVersion, resp.ProtocolVersion)
}

func TestInspectAndGenCommands(t *testing.T) {
	startDemo(t, "cmdinspect")

	out := execute(t, "inspect", "cmdinspect")
	var c message.Catalogue
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, "cmdinspect", c.Service)
	assert.Contains(t, c.Methods, message.MethodDescriptor{Method: "add", Version: "v2", Description: "Add any amount of numbers."})

	src := execute(t, "gen", "cmdinspect", "--package", "demo")
	assert.Contains(t, src, "package demo")
	assert.Contains(t, src, "Add two numbers.")
}

func TestBenchCommandRunsDemoInProcess(t *testing.T) {
	t.Setenv("MQRPC_SERVICE", "cmdbench")

	out := execute(t, "bench", "cmdbench", "echo", "hi", "--n", "20", "-c", "4")
	assert.Contains(t, out, "calls:    20 (0 failed)")
	assert.Contains(t, out, "p99:")
}
