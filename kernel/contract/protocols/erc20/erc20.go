// Package erc20 is the fungible token base shared by the token protocols
package erc20

import (
	"github.com/xuperchain/xreplay/kernel/common/xaddress"
	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/internal/kit"
	"github.com/xuperchain/xreplay/lib/numeric"
)

const (
	keyName        = "name"
	keySymbol      = "symbol"
	keyDecimals    = "decimals"
	keyTotalSupply = "totalSupply"
	prefixBalance  = "balance"
	prefixAllow    = "allowance"

	EventTransfer = "Transfer"
	EventApproval = "Approval"
)

// Token 对当前合约存储的ERC20读写封装，金额一律按十进制字符串存储
type Token struct {
	ctx contract.KContext
}

func New(ctx contract.KContext) *Token {
	return &Token{ctx: ctx}
}

func (t *Token) Init(name, symbol string, decimals *numeric.Int) error {
	if err := kit.PutString(t.ctx, keyName, name); err != nil {
		return err
	}
	if err := kit.PutString(t.ctx, keySymbol, symbol); err != nil {
		return err
	}
	return kit.PutInt(t.ctx, keyDecimals, decimals)
}

func (t *Token) Name() (string, error) {
	return kit.GetString(t.ctx, keyName)
}

func (t *Token) Symbol() (string, error) {
	return kit.GetString(t.ctx, keySymbol)
}

func (t *Token) Decimals() (*numeric.Int, error) {
	return kit.GetInt(t.ctx, keyDecimals)
}

func (t *Token) TotalSupply() (*numeric.Int, error) {
	return kit.GetInt(t.ctx, keyTotalSupply)
}

func (t *Token) BalanceOf(account string) (*numeric.Int, error) {
	return kit.GetInt(t.ctx, kit.Key(prefixBalance, account))
}

func (t *Token) Allowance(owner, spender string) (*numeric.Int, error) {
	return kit.GetInt(t.ctx, kit.Key(prefixAllow, owner, spender))
}

// Transfer moves amount from one account to another
func (t *Token) Transfer(from, to string, amount *numeric.Int) error {
	fromBal, err := t.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return contract.Revert("insufficient balance")
	}
	fromBal, _ = fromBal.Sub(amount)
	if err := kit.PutInt(t.ctx, kit.Key(prefixBalance, from), fromBal); err != nil {
		return err
	}

	toBal, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	if toBal, err = toBal.Add(amount); err != nil {
		return contract.Revert("balance overflow")
	}
	if err := kit.PutInt(t.ctx, kit.Key(prefixBalance, to), toBal); err != nil {
		return err
	}
	return t.emitTransfer(from, to, amount)
}

func (t *Token) Approve(owner, spender string, amount *numeric.Int) error {
	if err := kit.PutInt(t.ctx, kit.Key(prefixAllow, owner, spender), amount); err != nil {
		return err
	}
	return t.ctx.Emit(EventApproval, map[string]string{
		"owner":   owner,
		"spender": spender,
		"amount":  amount.String(),
	})
}

// SpendAllowance lowers the allowance owner granted spender
func (t *Token) SpendAllowance(owner, spender string, amount *numeric.Int) error {
	allowed, err := t.Allowance(owner, spender)
	if err != nil {
		return err
	}
	if allowed.Lt(amount) {
		return contract.Revert("insufficient allowance")
	}
	left, _ := allowed.Sub(amount)
	return kit.PutInt(t.ctx, kit.Key(prefixAllow, owner, spender), left)
}

func (t *Token) Mint(to string, amount *numeric.Int) error {
	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	if supply, err = supply.Add(amount); err != nil {
		return contract.Revert("total supply overflow")
	}
	if err := kit.PutInt(t.ctx, keyTotalSupply, supply); err != nil {
		return err
	}
	bal, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	// balance never exceeds total supply
	bal, _ = bal.Add(amount)
	if err := kit.PutInt(t.ctx, kit.Key(prefixBalance, to), bal); err != nil {
		return err
	}
	return t.emitTransfer(xaddress.ZeroAddress, to, amount)
}

func (t *Token) Burn(from string, amount *numeric.Int) error {
	bal, err := t.BalanceOf(from)
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return contract.Revert("insufficient balance")
	}
	bal, _ = bal.Sub(amount)
	if err := kit.PutInt(t.ctx, kit.Key(prefixBalance, from), bal); err != nil {
		return err
	}
	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	supply, _ = supply.Sub(amount)
	if err := kit.PutInt(t.ctx, keyTotalSupply, supply); err != nil {
		return err
	}
	return t.emitTransfer(from, xaddress.ZeroAddress, amount)
}

func (t *Token) emitTransfer(from, to string, amount *numeric.Int) error {
	return t.ctx.Emit(EventTransfer, map[string]string{
		"from":   from,
		"to":     to,
		"amount": amount.String(),
	})
}
