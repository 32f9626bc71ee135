package protocols

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/internal/kit"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/openmint"
)

var (
	deployerLower = strings.ToLower(deployer)
	receiverLower = strings.ToLower(receiver)
)

func TestBuiltinsRegister(t *testing.T) {
	env := newEnv(t)
	names := make([]string, 0)
	for _, def := range env.reg.List() {
		names = append(names, def.String())
	}
	assert.Equal(t, []string{"BridgeableToken@1", "DexLiquidityPool@1", "OpenEditionNft@1", "OpenMintToken@1"}, names)
	assert.Error(t, RegisterBuiltins(env.reg), "second registration must be a duplicate")
}

func TestOpenMintToken(t *testing.T) {
	env := newEnv(t)
	token := env.deploy(deployer, openmint.ProtocolName, openMintArgs("My Fun Token", "FUN"))

	env.mustCall(deployer, token, "mint", map[string]interface{}{"amount": "5"})
	assert.Equal(t, "5", env.balanceOf(token, deployer))
	assert.Equal(t, "5", env.view(token, "totalSupply", nil))
	assert.Equal(t, "My Fun Token", env.view(token, "name", nil))
	assert.Equal(t, "18", env.view(token, "decimals", nil))

	r := env.call(deployer, token, "mint", map[string]interface{}{"amount": "2000"})
	assert.Equal(t, contract.StatusCallError, r.Status)
	assert.Equal(t, "exceeded mint limit", r.Error)
	assert.Equal(t, "5", env.balanceOf(token, deployer))

	r = env.call(deployer, token, "mint", map[string]interface{}{"amount": "0"})
	assert.Equal(t, contract.StatusCallError, r.Status)

	r = env.mustCall(deployer, token, "transfer", map[string]interface{}{"amount": "2", "to": receiver})
	require.Len(t, r.Logs, 1)
	assert.Equal(t, map[string]string{"from": deployerLower, "to": receiverLower, "amount": "2"}, r.Logs[0].Data)

	env.mustCall(deployer, token, "airdrop", map[string]interface{}{"to": receiver, "amount": "2"})
	assert.Equal(t, "3", env.balanceOf(token, deployer))
	assert.Equal(t, "4", env.balanceOf(token, receiver))

	r = env.call(receiver, token, "transfer", map[string]interface{}{"amount": "5", "to": deployer})
	assert.Equal(t, contract.StatusCallError, r.Status)
	assert.Equal(t, "insufficient balance", r.Error)
}

func TestOpenMintMaxSupply(t *testing.T) {
	env := newEnv(t)
	args := openMintArgs("Tiny", "TNY")
	args["maxSupply"] = "10"
	token := env.deploy(deployer, openmint.ProtocolName, args)

	env.mustCall(deployer, token, "mint", map[string]interface{}{"amount": 10})
	r := env.call(deployer, token, "mint", map[string]interface{}{"amount": 1})
	assert.Equal(t, contract.StatusCallError, r.Status)
	assert.Equal(t, "exceeded max supply", r.Error)
	assert.Equal(t, "10", env.view(token, "maxSupply", nil))
}

func TestRestrictedFunctions(t *testing.T) {
	env := newEnv(t)
	token := env.deploy(deployer, openmint.ProtocolName, openMintArgs("My Fun Token", "FUN"))
	env.mustCall(deployer, token, "mint", map[string]interface{}{"amount": "5"})
	before := env.digestOf(token)

	r := env.call(deployer, token, contract.ConstructorName, openMintArgs("Again", "AGN"))
	assert.Equal(t, contract.StatusCallError, r.Status)

	_, err := env.static(token, "id", nil)
	assert.True(t, errors.Is(err, contract.ErrStaticCallRestricted), "id: %v", err)

	_, err = env.static(token, "_mint", map[string]interface{}{"amount": "5", "to": receiver})
	assert.True(t, errors.Is(err, contract.ErrStaticCallRestricted), "_mint: %v", err)

	r = env.call(deployer, token, "_mint", map[string]interface{}{"amount": "5", "to": receiver})
	assert.Equal(t, contract.StatusCallError, r.Status)
	r = env.call(deployer, token, "_burn", map[string]interface{}{"amount": "5", "from": deployer})
	assert.Equal(t, contract.StatusCallError, r.Status)

	assert.Equal(t, before, env.digestOf(token))
	assert.Equal(t, "0", env.balanceOf(token, receiver))

	// the reserved names carry no token logic of their own
	for _, name := range []string{"_mint", "_burn"} {
		spec, ok := openmint.Definition().Function(name)
		require.True(t, ok, name)
		assert.True(t, spec.IsInternal(), name)
		_, err := spec.Handler(nil)
		assert.True(t, contract.IsFatal(err), "%s: %v", name, err)
	}
}

func TestBridgeableToken(t *testing.T) {
	env := newEnv(t)
	token := env.deploy(deployer, "BridgeableToken", map[string]interface{}{
		"name":                 "Bridge Native 1",
		"symbol":               "PT1",
		"trustedSmartContract": trusted,
	})

	r := env.call(deployer, token, "bridgeIn", map[string]interface{}{"to": deployer, "amount": 500})
	assert.Equal(t, contract.StatusCallError, r.Status, "untrusted bridgeIn")

	env.mustCall(trusted, token, "bridgeIn", map[string]interface{}{"to": deployer, "amount": 500})
	env.mustCall(deployer, token, "bridgeOut", map[string]interface{}{"amount": 100})
	assert.Equal(t, "400", env.balanceOf(token, deployer))
	assert.Equal(t, "400", env.view(token, "totalSupply", nil))
	assert.Equal(t, "100", env.view(token, "pendingWithdrawals", map[string]interface{}{"address": deployer}))

	r = env.call(deployer, token, "markWithdrawalComplete", map[string]interface{}{"address": deployer, "amount": 100})
	assert.Equal(t, contract.StatusCallError, r.Status)
	r = env.call(trusted, token, "markWithdrawalComplete", map[string]interface{}{"address": deployer, "amount": 101})
	assert.Equal(t, contract.StatusCallError, r.Status)

	env.mustCall(trusted, token, "markWithdrawalComplete", map[string]interface{}{"address": deployer, "amount": 100})
	assert.Equal(t, "0", env.view(token, "pendingWithdrawals", map[string]interface{}{"address": deployer}))
	assert.Equal(t, strings.ToLower(trusted), env.view(token, "trustedSmartContract", nil))

	r = env.call(deployer, token, "bridgeOut", map[string]interface{}{"amount": 401})
	assert.Equal(t, contract.StatusCallError, r.Status)
}

type dexSetup struct {
	token0, token1, dex string
}

func setupDex(t *testing.T, env *env, token1Protocol string) dexSetup {
	s := dexSetup{
		token0: env.deploy(deployer, openmint.ProtocolName, openMintArgs("Pool Token 1", "PT1")),
		token1: env.deploy(deployer, token1Protocol, openMintArgs("Pool Token 2", "PT2")),
	}
	s.dex = env.deploy(deployer, "DexLiquidityPool", map[string]interface{}{"token0": s.token0, "token1": s.token1})

	env.mustCall(deployer, s.token0, "mint", map[string]interface{}{"amount": 500})
	env.mustCall(deployer, s.token1, "mint", map[string]interface{}{"amount": 600})
	env.mustCall(deployer, s.token1, "approve", map[string]interface{}{"spender": s.dex, "amount": 21000000})
	env.mustCall(deployer, s.token0, "approve", map[string]interface{}{"spender": s.dex, "amount": 21000000})
	env.mustCall(deployerLower, s.dex, "add_liquidity", map[string]interface{}{"token_0_amount": 200, "token_1_amount": 100})
	return s
}

func TestDexLiquidityPool(t *testing.T) {
	env := newEnv(t)
	s := setupDex(t, env, openmint.ProtocolName)
	assert.Equal(t, "300", env.balanceOf(s.token0, deployerLower))
	assert.Equal(t, "200", env.balanceOf(s.token0, s.dex))

	out := env.view(s.dex, "calculate_output_amount", map[string]interface{}{
		"input_token": s.token0, "output_token": s.token1, "input_amount": 50,
	})
	assert.Equal(t, "20", out)

	r := env.mustCall(deployer, s.dex, "swap", map[string]interface{}{
		"input_amount": 50, "output_token": s.token1, "input_token": s.token0,
	})
	assert.Equal(t, "20", r.ReturnValue)
	assert.Len(t, r.Logs, 3, "transferFrom, transfer and swap logs")

	assert.Equal(t, "250", env.balanceOf(s.token0, deployerLower))
	assert.Equal(t, "520", env.balanceOf(s.token1, deployerLower))
	assert.JSONEq(t, `{"`+s.token0+`":"250","`+s.token1+`":"80"}`, env.view(s.dex, "reserves", nil))

	r = env.call(deployer, s.dex, "swap", map[string]interface{}{
		"input_amount": 50, "output_token": s.token0, "input_token": s.token0,
	})
	assert.Equal(t, contract.StatusCallError, r.Status)
	assert.Equal(t, "invalid token pair", r.Error)

	r = env.call(deployer, s.dex, "swap", map[string]interface{}{
		"input_amount": 1, "output_token": s.token1, "input_token": s.token0,
	})
	assert.Equal(t, contract.StatusCallError, r.Status)
	assert.Equal(t, "insufficient output amount", r.Error)
}

// brokenToken accepts deposits but never pays out
func brokenToken() contract.ProtocolDefinition {
	def := openmint.Definition()
	def.Name = "BrokenToken"
	def.Functions["transfer"] = kit.Mutating("transfer", func(ctx contract.KContext) (*contract.Response, error) {
		return nil, contract.Revert("transfers are frozen")
	}, kit.Param("to", contract.ParamAddress), kit.Param("amount", contract.ParamUint256))
	return def
}

func TestDexSwapIsAtomic(t *testing.T) {
	env := newEnv(t, brokenToken())
	s := setupDex(t, env, "BrokenToken")
	before := []string{env.digestOf(s.token0), env.digestOf(s.token1), env.digestOf(s.dex)}

	r := env.call(deployer, s.dex, "swap", map[string]interface{}{
		"input_amount": 50, "output_token": s.token1, "input_token": s.token0,
	})
	assert.Equal(t, contract.StatusCallError, r.Status)
	assert.Equal(t, "transfers are frozen", r.Error)
	assert.Empty(t, r.Logs)

	after := []string{env.digestOf(s.token0), env.digestOf(s.token1), env.digestOf(s.dex)}
	assert.Equal(t, before, after)
	assert.Equal(t, "300", env.balanceOf(s.token0, deployer))
}

func nftArgs(start, end int64) map[string]interface{} {
	return map[string]interface{}{
		"name":          "Glass Punk Thing-y",
		"symbol":        "GP",
		"maxPerAddress": "1000",
		"description":   "HI! ☃ 🎉",
		"contentURI":    "data:image/png;base64,iVBORw0KGgo=",
		"mintStart":     start,
		"mintEnd":       end,
	}
}

func TestOpenEditionNft(t *testing.T) {
	env := newEnv(t)
	nft := env.deploy(deployer, "OpenEditionNft", nftArgs(env.now()-600, env.now()+365*24*3600))

	env.mustCall(deployer, nft, "mint", map[string]interface{}{"amount": "2"})
	r := env.call(deployer, nft, "mint", map[string]interface{}{"amount": "2000"})
	assert.Equal(t, contract.StatusCallError, r.Status)

	assert.Equal(t, deployerLower, env.view(nft, "ownerOf", map[string]interface{}{"id": "0"}))
	assert.Equal(t, deployerLower, env.view(nft, "ownerOf", map[string]interface{}{"id": 1}))
	_, err := env.static(nft, "ownerOf", map[string]interface{}{"id": 100})
	assert.True(t, errors.Is(err, contract.ErrCall), "ownerOf nonexistent: %v", err)

	uri := env.view(nft, "tokenURI", map[string]interface{}{"id": "0"})
	assert.True(t, strings.HasPrefix(uri, "data:application/json,"))
	for _, c := range []byte(uri) {
		require.Less(t, c, byte(0x80), "tokenURI must be ascii: %s", uri)
	}
	assert.Contains(t, uri, `HI! \u2603 \ud83c\udf89`)
	assert.Contains(t, uri, `Glass Punk Thing-y #0`)

	assert.Equal(t, "2", env.view(nft, "totalSupply", nil))
	assert.Equal(t, "2", env.view(nft, "numberMinted", map[string]interface{}{"owner": deployer}))
	assert.Equal(t, "2", env.view(nft, "balanceOf", map[string]interface{}{"owner": deployer}))

	r = env.call(receiver, nft, "transferFrom", map[string]interface{}{"from": deployer, "to": receiver, "id": 0})
	assert.Equal(t, contract.StatusCallError, r.Status, "stranger can not transfer")

	env.mustCall(deployer, nft, "approve", map[string]interface{}{"spender": receiver, "id": 0})
	assert.Equal(t, receiverLower, env.view(nft, "getApproved", map[string]interface{}{"id": 0}))
	env.mustCall(receiver, nft, "transferFrom", map[string]interface{}{"from": deployer, "to": receiver, "id": 0})
	assert.Equal(t, receiverLower, env.view(nft, "ownerOf", map[string]interface{}{"id": 0}))
	assert.Equal(t, "1", env.view(nft, "balanceOf", map[string]interface{}{"owner": deployer}))

	env.mustCall(deployer, nft, "setApprovalForAll", map[string]interface{}{"operator": receiver, "approved": true})
	assert.Equal(t, "true", env.view(nft, "isApprovedForAll", map[string]interface{}{"owner": deployer, "operator": receiver}))
	env.mustCall(receiver, nft, "transferFrom", map[string]interface{}{"from": deployer, "to": receiver, "id": 1})
	assert.Equal(t, "2", env.view(nft, "balanceOf", map[string]interface{}{"owner": receiver}))
}

func TestOpenEditionMintWindow(t *testing.T) {
	env := newEnv(t)
	future := env.deploy(deployer, "OpenEditionNft", nftArgs(env.now()+3600, env.now()+7200))
	r := env.call(deployer, future, "mint", map[string]interface{}{"amount": 1})
	assert.Equal(t, contract.StatusCallError, r.Status)
	assert.Equal(t, "minting is not active", r.Error)

	past := env.deploy(deployer, "OpenEditionNft", nftArgs(env.now()-7200, env.now()-3600))
	r = env.call(deployer, past, "mint", map[string]interface{}{"amount": 1})
	assert.Equal(t, contract.StatusCallError, r.Status)

	r = env.dispatch(&contract.InboundEvent{Command: contract.CommandDeploy, From: deployer,
		Protocol: "OpenEditionNft", ConstructorArgs: nftArgs(100, 100)})
	assert.Equal(t, contract.StatusCallError, r.Status)
}

func TestOpenEditionMintBatch(t *testing.T) {
	env := newEnv(t)
	args := nftArgs(env.now()-600, env.now()+3600)
	args["maxPerAddress"] = "1000000000000000000000000"
	nft := env.deploy(deployer, "OpenEditionNft", args)
	before := env.digestOf(nft)

	// a limit this large must not turn one call into millions of writes
	r := env.call(deployer, nft, "mint", map[string]interface{}{"amount": "1000000000000"})
	assert.Equal(t, contract.StatusCallError, r.Status)
	assert.Equal(t, "at most 100 tokens per mint", r.Error)
	r = env.call(deployer, nft, "mint", map[string]interface{}{"amount": 101})
	assert.Equal(t, contract.StatusCallError, r.Status)
	assert.Equal(t, before, env.digestOf(nft))

	r = env.mustCall(deployer, nft, "mint", map[string]interface{}{"amount": 100})
	assert.Len(t, r.Logs, 100)
	assert.Equal(t, "100", env.view(nft, "totalSupply", nil))
	assert.Equal(t, deployerLower, env.view(nft, "ownerOf", map[string]interface{}{"id": 99}))
}
