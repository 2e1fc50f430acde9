package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDemo_ErrorPolicy(t *testing.T) {
	out, err := execute(t, "--id", "s-001")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "full_time\t15", lines[0])
	assert.Equal(t, "part_time\t10", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "visitor\terror: "), lines[2])
	assert.Contains(t, lines[2], "visitor students have no required hours")
}

func TestDemo_SentinelPolicy(t *testing.T) {
	out, err := execute(t, "--visitor-policy", "sentinel")
	require.NoError(t, err)
	assert.Contains(t, out, "visitor\t0 (not applicable)\n")
}

func TestDemo_UnknownPolicy(t *testing.T) {
	_, err := execute(t, "--visitor-policy", "zero")
	assert.Error(t, err)
}

func TestDemo_RejectsArgs(t *testing.T) {
	_, err := execute(t, "extra")
	assert.Error(t, err)
}
