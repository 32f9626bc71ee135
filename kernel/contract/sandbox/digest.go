package sandbox

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/umbracle/fastrlp"
	"golang.org/x/crypto/sha3"

	"github.com/xuperchain/xreplay/kernel/contract"
)

type kvPair struct {
	key   []byte
	value []byte
}

// Digest hashes every committed (key, value) pair in key order. Two
// replicas with equal digests hold byte-identical state.
func Digest(reader contract.StateReader) (string, error) {
	return DigestPrefix(reader, nil)
}

// DigestPrefix is Digest restricted to raw keys with prefix
func DigestPrefix(reader contract.StateReader, prefix []byte) (string, error) {
	var pairs []kvPair
	err := reader.Iterate(prefix, func(key, value []byte) bool {
		pairs = append(pairs, kvPair{key: key, value: value})
		return true
	})
	if err != nil {
		return "", err
	}
	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].key, pairs[j].key) < 0
	})

	ar := &fastrlp.Arena{}
	list := ar.NewArray()
	for _, p := range pairs {
		item := ar.NewArray()
		item.Set(ar.NewCopyBytes(p.key))
		item.Set(ar.NewCopyBytes(p.value))
		list.Set(item)
	}

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(list.MarshalTo(nil))
	return hexutil.Encode(hasher.Sum(nil)), nil
}
