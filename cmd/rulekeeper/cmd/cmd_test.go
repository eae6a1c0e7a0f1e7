package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEvalCommand(t *testing.T) {
	rule := writeFile(t, "rule.json", `{"id":"root","type":"group","operator":"AND","conditions":[
		{"id":"c1","type":"field","field":"is_kev","operator":"eq","value":"true","values":[]}
	]}`)

	out, err := execute(t, `{"is_kev": true}`, "eval", "--rule", rule, "--entity", "-", "--entity-type", "vulnerabilities")
	require.NoError(t, err)

	var got evalOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Result.Matches)
	assert.Empty(t, got.Issues)
}

func TestEvalCommand_MalformedEntity(t *testing.T) {
	rule := writeFile(t, "rule.json", `{"id":"root","type":"group","operator":"AND","conditions":[]}`)

	out, err := execute(t, `{oops`, "eval", "--rule", rule, "--entity", "-", "--entity-type", "")
	require.NoError(t, err)

	var got evalOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Result.Matches)
	assert.Equal(t, "Invalid JSON", got.Result.Details["parseError"])
}

func TestFieldsCommand(t *testing.T) {
	out, err := execute(t, "", "fields", "iocs")
	require.NoError(t, err)
	assert.Contains(t, out, "confidence")
	assert.Contains(t, out, "gt,gte")
	assert.NotContains(t, out, "cvss_score")

	_, err = execute(t, "", "fields", "reports")
	assert.Error(t, err)
}

func TestSigningSecret(t *testing.T) {
	one := map[string][]byte{"aa": []byte("x")}
	two := map[string][]byte{"aa": []byte("x"), "bb": []byte("y")}

	id, _, err := signingSecret(one, "")
	require.NoError(t, err)
	assert.Equal(t, "aa", id)

	_, _, err = signingSecret(two, "")
	assert.Error(t, err)

	id, secret, err := signingSecret(two, "bb")
	require.NoError(t, err)
	assert.Equal(t, "bb", id)
	assert.Equal(t, []byte("y"), secret)

	_, _, err = signingSecret(two, "cc")
	assert.Error(t, err)

	_, _, err = signingSecret(nil, "")
	assert.Error(t, err)
}
