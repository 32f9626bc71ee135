package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeed = `{"sequence": 1, "blockNumber": 10, "blockTimestamp": 1700000000, "txHash": "0x01", "command": "deploy", "from": "0xC2172a6315c1D7f6855768F843c420EbB36eDa97", "protocol": "OpenMintToken", "constructorArgs": {"name": "Open", "symbol": "OPEN", "maxSupply": "21000000", "perMintLimit": "1000", "decimals": 18}}
{"sequence": 2, "blockNumber": 11, "blockTimestamp": 1700000012, "txHash": "0x02", "command": "call", "from": "0xC2172a6315c1D7f6855768F843c420EbB36eDa97", "contractId": "0xdead", "function": "mint", "args": {"amount": 5}}
{"sequence": 3, "blockNumber": 11, "blockTimestamp": 1700000024, "txHash": "0x03", "command": "call", "from": "0x5B38Da6a701c568545dCfcB03FcB875f56beddC4", "contractId": "0xdead", "function": "mint", "args": {"amount": 5}}
`

// runCmd executes the root command in a temp root and returns stdout
func runCmd(t *testing.T, args ...string) []byte {
	root := t.TempDir()
	env := filepath.Join(root, "env.yaml")
	require.NoError(t, os.WriteFile(env, []byte("rootPath: "+root+"\n"), 0644))
	feed := filepath.Join(root, "events.jsonl")
	require.NoError(t, os.WriteFile(feed, []byte(testFeed), 0644))

	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	defer func() { stdout = old }()

	rootCmd := NewRootCommand()
	rootCmd.SetArgs(append(args, "--conf", env, "--feed", feed, "--output", outputJSON))
	require.NoError(t, rootCmd.Execute())
	return buf.Bytes()
}

func TestTotalsCmd(t *testing.T) {
	var out struct {
		Result struct {
			TransactionCount       int `json:"transaction_count"`
			UniqueFromAddressCount int `json:"unique_from_address_count"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(runCmd(t, "totals"), &out))
	assert.Equal(t, 3, out.Result.TransactionCount)
	assert.Equal(t, 2, out.Result.UniqueFromAddressCount)
}

func TestReceiptsCmd(t *testing.T) {
	var out struct {
		Result []struct {
			EventID string `json:"eventId"`
			Status  string `json:"status"`
		} `json:"result"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(runCmd(t, "receipts", "--per-page", "2"), &out))
	assert.Equal(t, 3, out.Count)
	require.Len(t, out.Result, 2)
	// newest first, 0xdead is not a deployed contract
	assert.Equal(t, "0x03", out.Result[0].EventID)
	assert.Equal(t, "call_error", out.Result[0].Status)
	assert.Equal(t, "0x02", out.Result[1].EventID)
}

func TestProtocolsCmd(t *testing.T) {
	var out []protocolInfo
	require.NoError(t, json.Unmarshal(runCmd(t, "protocols"), &out))
	names := make([]string, 0, len(out))
	for _, info := range out {
		names = append(names, info.Name)
	}
	assert.Contains(t, names, "OpenMintToken")
	assert.Contains(t, names, "DexLiquidityPool")
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	defer func() { stdout = old }()

	printKV([2]string{"Key", "Value"}, map[string]string{"b": "2", "a": "1"})
	out := buf.String()
	assert.Contains(t, out, "KEY")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("| a")), bytes.Index(buf.Bytes(), []byte("| b")))
}
