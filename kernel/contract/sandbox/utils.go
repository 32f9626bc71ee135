package sandbox

import (
	"bytes"
	"fmt"
)

// BucketSeperator separator between bucket and raw key
const BucketSeperator = "/"

// MakeRawKey joins bucket and key, buckets never contain the separator
func MakeRawKey(bucket string, key string) []byte {
	k := make([]byte, 0, len(bucket)+len(BucketSeperator)+len(key))
	k = append(k, bucket...)
	k = append(k, BucketSeperator...)
	return append(k, key...)
}

// BucketPrefix is the raw key prefix shared by every key in bucket
func BucketPrefix(bucket string) []byte {
	return MakeRawKey(bucket, "")
}

// ParseRawKey splits a raw key at the first separator
func ParseRawKey(rawKey []byte) (string, string, error) {
	idx := bytes.Index(rawKey, []byte(BucketSeperator))
	if idx < 0 {
		return "", "", fmt.Errorf("parseRawKey failed, invalid raw key:%s", string(rawKey))
	}
	return string(rawKey[:idx]), string(rawKey[idx+1:]), nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
