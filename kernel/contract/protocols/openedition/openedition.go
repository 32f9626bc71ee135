// Package openedition is an nft collection of identical tokens minted
// inside a time window
package openedition

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/xuperchain/xreplay/kernel/common/xaddress"
	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/internal/kit"
	"github.com/xuperchain/xreplay/lib/numeric"
)

const (
	ProtocolName = "OpenEditionNft"

	keyName          = "name"
	keySymbol        = "symbol"
	keyMaxPerAddress = "maxPerAddress"
	keyDescription   = "description"
	keyContentURI    = "contentURI"
	keyMintStart     = "mintStart"
	keyMintEnd       = "mintEnd"
	keyNextTokenID   = "nextTokenId"

	prefixOwner    = "owner"
	prefixBalance  = "balance"
	prefixMinted   = "minted"
	prefixApproved = "approved"
	prefixOperator = "operator"

	eventTransfer       = "Transfer"
	eventApproval       = "Approval"
	eventApprovalForAll = "ApprovalForAll"

	// 单次铸造上限，每个 token 都要写一次 owner 和一条事件
	maxMintBatch = 100
)

func Definition() contract.ProtocolDefinition {
	id := kit.Param("id", contract.ParamUint256)
	owner := kit.Param("owner", contract.ParamAddress)
	operator := kit.Param("operator", contract.ParamAddress)
	return contract.ProtocolDefinition{
		Name:    ProtocolName,
		Version: 1,
		Constructor: kit.Constructor(construct,
			kit.Param("name", contract.ParamString),
			kit.Param("symbol", contract.ParamString),
			kit.Param("maxPerAddress", contract.ParamUint256),
			kit.Param("description", contract.ParamString),
			kit.Param("contentURI", contract.ParamString),
			kit.Param("mintStart", contract.ParamDatetime),
			kit.Param("mintEnd", contract.ParamDatetime)),
		Functions: kit.Functions([]contract.FunctionSpec{
			kit.Mutating("mint", mint, kit.Param("amount", contract.ParamUint256)),
			kit.Mutating("approve", approve, kit.Param("spender", contract.ParamAddress), id),
			kit.Mutating("setApprovalForAll", setApprovalForAll, operator, kit.Param("approved", contract.ParamBool)),
			kit.Mutating("transferFrom", transferFrom,
				kit.Param("from", contract.ParamAddress), kit.Param("to", contract.ParamAddress), id),
			kit.View("ownerOf", ownerOf, id),
			kit.View("tokenURI", tokenURI, id),
			kit.View("balanceOf", balanceOf, owner),
			kit.View("getApproved", getApproved, id),
			kit.View("isApprovedForAll", isApprovedForAll, owner, operator),
			kit.View("numberMinted", numberMinted, owner),
			kit.View("totalSupply", totalSupply),
			kit.View("name", stringView(keyName)),
			kit.View("symbol", stringView(keySymbol)),
		}),
	}
}

func construct(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	if err := kit.Require(args.Datetime("mintStart") < args.Datetime("mintEnd"), "mint window is empty"); err != nil {
		return nil, err
	}
	for _, key := range []string{keyName, keySymbol, keyDescription, keyContentURI} {
		if err := kit.PutString(ctx, key, args.String(key)); err != nil {
			return nil, err
		}
	}
	if err := kit.PutInt(ctx, keyMaxPerAddress, args.Uint256(keyMaxPerAddress)); err != nil {
		return nil, err
	}
	for _, key := range []string{keyMintStart, keyMintEnd} {
		if err := kit.PutString(ctx, key, fmt.Sprint(args.Datetime(key))); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func getTimestamp(ctx contract.KContext, key string) (int64, error) {
	v, err := kit.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	var ts int64
	if _, err := fmt.Sscan(v, &ts); err != nil {
		return 0, contract.Fatalf("corrupted timestamp at %s: %v", key, err)
	}
	return ts, nil
}

func mint(ctx contract.KContext) (*contract.Response, error) {
	amount := ctx.Args().Uint256("amount")
	sender := ctx.Caller()
	if err := kit.Require(!amount.IsZero(), "amount must be positive"); err != nil {
		return nil, err
	}

	start, err := getTimestamp(ctx, keyMintStart)
	if err != nil {
		return nil, err
	}
	end, err := getTimestamp(ctx, keyMintEnd)
	if err != nil {
		return nil, err
	}
	now := ctx.BlockTimestamp()
	if err := kit.Require(now >= start && now < end, "minting is not active"); err != nil {
		return nil, err
	}

	limit, err := kit.GetInt(ctx, keyMaxPerAddress)
	if err != nil {
		return nil, err
	}
	minted, err := kit.GetInt(ctx, kit.Key(prefixMinted, sender))
	if err != nil {
		return nil, err
	}
	total, err := minted.Add(amount)
	if err != nil || total.Gt(limit) {
		return nil, contract.Revert("exceeded mint limit")
	}
	count, ok := amount.Uint64()
	if !ok || count > maxMintBatch {
		return nil, contract.Revert("at most %d tokens per mint", maxMintBatch)
	}

	next, err := kit.GetInt(ctx, keyNextTokenID)
	if err != nil {
		return nil, err
	}
	one := numeric.NewInt(1)
	for i := uint64(0); i < count; i++ {
		if err := kit.PutString(ctx, kit.Key(prefixOwner, next.String()), sender); err != nil {
			return nil, err
		}
		err := ctx.Emit(eventTransfer, map[string]string{"from": xaddress.ZeroAddress, "to": sender, "id": next.String()})
		if err != nil {
			return nil, err
		}
		if next, err = next.Add(one); err != nil {
			return nil, contract.Revert("token id overflow")
		}
	}
	if err := kit.PutInt(ctx, keyNextTokenID, next); err != nil {
		return nil, err
	}
	if err := kit.PutInt(ctx, kit.Key(prefixMinted, sender), total); err != nil {
		return nil, err
	}
	if err := addBalance(ctx, sender, amount, true); err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}

func addBalance(ctx contract.KContext, owner string, delta *numeric.Int, add bool) error {
	key := kit.Key(prefixBalance, owner)
	bal, err := kit.GetInt(ctx, key)
	if err != nil {
		return err
	}
	if add {
		bal, err = bal.Add(delta)
	} else {
		bal, err = bal.Sub(delta)
	}
	if err != nil {
		return contract.Fatalf("nft balance of %s inconsistent: %v", owner, err)
	}
	return kit.PutInt(ctx, key, bal)
}

// ownerOfToken reverts for ids never minted
func ownerOfToken(ctx contract.KContext, id *numeric.Int) (string, error) {
	owner, err := kit.GetString(ctx, kit.Key(prefixOwner, id.String()))
	if err != nil {
		return "", err
	}
	if owner == "" {
		return "", contract.Revert("token does not exist")
	}
	return owner, nil
}

func isOperator(ctx contract.KContext, owner, operator string) (bool, error) {
	v, err := kit.GetString(ctx, kit.Key(prefixOperator, owner, operator))
	return v == "true", err
}

func ownerOf(ctx contract.KContext) (*contract.Response, error) {
	owner, err := ownerOfToken(ctx, ctx.Args().Uint256("id"))
	if err != nil {
		return nil, err
	}
	return contract.OKString(owner), nil
}

func approve(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	id, spender := args.Uint256("id"), args.Address("spender")
	owner, err := ownerOfToken(ctx, id)
	if err != nil {
		return nil, err
	}
	sender := ctx.Caller()
	if sender != owner {
		ok, err := isOperator(ctx, owner, sender)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, contract.Revert("not authorized to approve")
		}
	}
	if err := kit.PutString(ctx, kit.Key(prefixApproved, id.String()), spender); err != nil {
		return nil, err
	}
	err = ctx.Emit(eventApproval, map[string]string{"owner": owner, "spender": spender, "id": id.String()})
	if err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}

func setApprovalForAll(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	operator, approved := args.Address("operator"), args.Bool("approved")
	key := kit.Key(prefixOperator, ctx.Caller(), operator)
	var err error
	if approved {
		err = kit.PutString(ctx, key, "true")
	} else {
		err = ctx.Del(key)
	}
	if err != nil {
		return nil, err
	}
	err = ctx.Emit(eventApprovalForAll, map[string]string{
		"owner":    ctx.Caller(),
		"operator": operator,
		"approved": fmt.Sprint(approved),
	})
	if err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}

func transferFrom(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	from, to, id := args.Address("from"), args.Address("to"), args.Uint256("id")
	owner, err := ownerOfToken(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := kit.Require(owner == from, "transfer from incorrect owner"); err != nil {
		return nil, err
	}

	sender := ctx.Caller()
	approvedKey := kit.Key(prefixApproved, id.String())
	if sender != owner {
		approved, err := kit.GetString(ctx, approvedKey)
		if err != nil {
			return nil, err
		}
		operator, err := isOperator(ctx, owner, sender)
		if err != nil {
			return nil, err
		}
		if approved != sender && !operator {
			return nil, contract.Revert("not authorized to transfer")
		}
	}

	if err := ctx.Del(approvedKey); err != nil {
		return nil, err
	}
	if err := kit.PutString(ctx, kit.Key(prefixOwner, id.String()), to); err != nil {
		return nil, err
	}
	one := numeric.NewInt(1)
	if err := addBalance(ctx, from, one, false); err != nil {
		return nil, err
	}
	if err := addBalance(ctx, to, one, true); err != nil {
		return nil, err
	}
	if err := ctx.Emit(eventTransfer, map[string]string{"from": from, "to": to, "id": id.String()}); err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}

// tokenURI renders the metadata as an ascii only data uri
func tokenURI(ctx contract.KContext) (*contract.Response, error) {
	id := ctx.Args().Uint256("id")
	if _, err := ownerOfToken(ctx, id); err != nil {
		return nil, err
	}
	name, err := kit.GetString(ctx, keyName)
	if err != nil {
		return nil, err
	}
	description, err := kit.GetString(ctx, keyDescription)
	if err != nil {
		return nil, err
	}
	image, err := kit.GetString(ctx, keyContentURI)
	if err != nil {
		return nil, err
	}

	meta := struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Image       string `json:"image"`
	}{
		Name:        name + " #" + id.String(),
		Description: description,
		Image:       image,
	}
	buf, err := json.Marshal(meta)
	if err != nil {
		return nil, contract.Fatalf("encode token metadata failed.err:%v", err)
	}
	return contract.OKString("data:application/json," + asciiEscape(string(buf))), nil
}

// asciiEscape rewrites every non ascii rune of a json document as \uXXXX
func asciiEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&b, "\\u%04x\\u%04x", r1, r2)
			continue
		}
		fmt.Fprintf(&b, "\\u%04x", r)
	}
	return b.String()
}

func balanceOf(ctx contract.KContext) (*contract.Response, error) {
	v, err := kit.GetInt(ctx, kit.Key(prefixBalance, ctx.Args().Address("owner")))
	if err != nil {
		return nil, err
	}
	return contract.OKInt(v), nil
}

func getApproved(ctx contract.KContext) (*contract.Response, error) {
	id := ctx.Args().Uint256("id")
	if _, err := ownerOfToken(ctx, id); err != nil {
		return nil, err
	}
	v, err := kit.GetString(ctx, kit.Key(prefixApproved, id.String()))
	if err != nil {
		return nil, err
	}
	if v == "" {
		v = xaddress.ZeroAddress
	}
	return contract.OKString(v), nil
}

func isApprovedForAll(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	ok, err := isOperator(ctx, args.Address("owner"), args.Address("operator"))
	if err != nil {
		return nil, err
	}
	return contract.OKBool(ok), nil
}

func numberMinted(ctx contract.KContext) (*contract.Response, error) {
	v, err := kit.GetInt(ctx, kit.Key(prefixMinted, ctx.Args().Address("owner")))
	if err != nil {
		return nil, err
	}
	return contract.OKInt(v), nil
}

func totalSupply(ctx contract.KContext) (*contract.Response, error) {
	v, err := kit.GetInt(ctx, keyNextTokenID)
	if err != nil {
		return nil, err
	}
	return contract.OKInt(v), nil
}

func stringView(key string) contract.KernMethod {
	return func(ctx contract.KContext) (*contract.Response, error) {
		v, err := kit.GetString(ctx, key)
		if err != nil {
			return nil, err
		}
		return contract.OKString(v), nil
	}
}
