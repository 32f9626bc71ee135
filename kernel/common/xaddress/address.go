package xaddress

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroAddress is used as the counterparty of mint and burn logs
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// IsAddress reports whether addr is 0x followed by 40 hex characters
func IsAddress(addr string) bool {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return false
	}
	return common.IsHexAddress(addr)
}

// Normalize validates addr and returns its lowercase form
func Normalize(addr string) (string, error) {
	if !IsAddress(addr) {
		return "", fmt.Errorf("invalid address: %q", addr)
	}
	return "0x" + strings.ToLower(addr[2:]), nil
}

// DeriveContractID 由部署者、事件序号和交易哈希生成合约地址，
// 取 keccak256(from|sequence|txHash) 的前20字节
func DeriveContractID(from string, sequence uint64, txHash string) string {
	seed := strings.ToLower(from) + "|" + strconv.FormatUint(sequence, 10) + "|" + strings.ToLower(txHash)
	hash := crypto.Keccak256([]byte(seed))
	return strings.ToLower(common.BytesToAddress(hash[:common.AddressLength]).Hex())
}
