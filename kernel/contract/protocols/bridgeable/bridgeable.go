// Package bridgeable is a token whose supply is managed by a trusted
// bridge contract on another chain
package bridgeable

import (
	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/erc20"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/internal/kit"
	"github.com/xuperchain/xreplay/lib/numeric"
)

const (
	ProtocolName = "BridgeableToken"

	keyTrusted        = "trustedSmartContract"
	prefixPending     = "pendingWithdrawals"
	defaultDecimals   = 18
	eventBridgedIn    = "BridgedIn"
	eventBridgedOut   = "BridgedOut"
	eventWithdrawDone = "WithdrawalComplete"
)

func Definition() contract.ProtocolDefinition {
	amount := kit.Param("amount", contract.ParamUint256)
	return contract.ProtocolDefinition{
		Name:    ProtocolName,
		Version: 1,
		Constructor: kit.Constructor(construct,
			kit.Param("name", contract.ParamString),
			kit.Param("symbol", contract.ParamString),
			kit.Param("trustedSmartContract", contract.ParamAddress)),
		Functions: kit.Functions(erc20.Functions(), []contract.FunctionSpec{
			kit.Mutating("bridgeIn", bridgeIn, kit.Param("to", contract.ParamAddress), amount),
			kit.Mutating("bridgeOut", bridgeOut, amount),
			kit.Mutating("markWithdrawalComplete", markWithdrawalComplete,
				kit.Param("address", contract.ParamAddress), amount),
			kit.View("trustedSmartContract", trustedSmartContract),
			kit.View("pendingWithdrawals", pendingWithdrawals, kit.Param("address", contract.ParamAddress)),
		}),
	}
}

func construct(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	err := erc20.New(ctx).Init(args.String("name"), args.String("symbol"), numeric.NewInt(defaultDecimals))
	if err != nil {
		return nil, err
	}
	return nil, kit.PutString(ctx, keyTrusted, args.Address("trustedSmartContract"))
}

func onlyTrusted(ctx contract.KContext) error {
	trusted, err := kit.GetString(ctx, keyTrusted)
	if err != nil {
		return err
	}
	return kit.Require(ctx.Caller() == trusted, "only the trusted smart contract can call this function")
}

func bridgeIn(ctx contract.KContext) (*contract.Response, error) {
	if err := onlyTrusted(ctx); err != nil {
		return nil, err
	}
	args := ctx.Args()
	to, amount := args.Address("to"), args.Uint256("amount")
	if err := erc20.New(ctx).Mint(to, amount); err != nil {
		return nil, err
	}
	if err := ctx.Emit(eventBridgedIn, map[string]string{"to": to, "amount": amount.String()}); err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}

// bridgeOut burns the sender's tokens and queues them for withdrawal
func bridgeOut(ctx contract.KContext) (*contract.Response, error) {
	sender, amount := ctx.Caller(), ctx.Args().Uint256("amount")
	if err := erc20.New(ctx).Burn(sender, amount); err != nil {
		return nil, err
	}
	key := kit.Key(prefixPending, sender)
	pending, err := kit.GetInt(ctx, key)
	if err != nil {
		return nil, err
	}
	// pending never exceeds burned supply
	pending, _ = pending.Add(amount)
	if err := kit.PutInt(ctx, key, pending); err != nil {
		return nil, err
	}
	if err := ctx.Emit(eventBridgedOut, map[string]string{"from": sender, "amount": amount.String()}); err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}

func markWithdrawalComplete(ctx contract.KContext) (*contract.Response, error) {
	if err := onlyTrusted(ctx); err != nil {
		return nil, err
	}
	args := ctx.Args()
	addr, amount := args.Address("address"), args.Uint256("amount")
	key := kit.Key(prefixPending, addr)
	pending, err := kit.GetInt(ctx, key)
	if err != nil {
		return nil, err
	}
	if pending.Lt(amount) {
		return nil, contract.Revert("insufficient pending withdrawal")
	}
	pending, _ = pending.Sub(amount)
	if err := kit.PutInt(ctx, key, pending); err != nil {
		return nil, err
	}
	if err := ctx.Emit(eventWithdrawDone, map[string]string{"address": addr, "amount": amount.String()}); err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}

func trustedSmartContract(ctx contract.KContext) (*contract.Response, error) {
	v, err := kit.GetString(ctx, keyTrusted)
	if err != nil {
		return nil, err
	}
	return contract.OKString(v), nil
}

func pendingWithdrawals(ctx contract.KContext) (*contract.Response, error) {
	v, err := kit.GetInt(ctx, kit.Key(prefixPending, ctx.Args().Address("address")))
	if err != nil {
		return nil, err
	}
	return contract.OKInt(v), nil
}
