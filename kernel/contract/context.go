package contract

import (
	"encoding/json"
	"strconv"

	"github.com/xuperchain/xreplay/lib/numeric"
)

const (
	// StatusOK is used when contract successfully ends.
	StatusOK = 200
	// StatusErrorThreshold is the status dividing line for the normal operation of the contract
	StatusErrorThreshold = 400
	// StatusError is used when contract fails.
	StatusError = 500
)

// Response is the result of the contract run
type Response struct {
	// Status 用于反映合约的运行结果的错误码
	Status int `json:"status"`
	// Message 用于携带一些有用的debug信息
	Message string `json:"message"`
	// Body 合约返回值，整数为十进制字符串，结构体为json
	Body []byte `json:"body"`
}

// HasError reports whether the response status is an error
func (r *Response) HasError() bool {
	return r.Status >= StatusErrorThreshold
}

func OK(body []byte) *Response {
	return &Response{Status: StatusOK, Body: body}
}

func OKString(s string) *Response {
	return OK([]byte(s))
}

func OKInt(n *numeric.Int) *Response {
	return OKString(n.String())
}

func OKUint64(n uint64) *Response {
	return OKString(strconv.FormatUint(n, 10))
}

func OKBool(b bool) *Response {
	return OKString(strconv.FormatBool(b))
}

func OKJSON(v interface{}) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, Fatalf("encode response failed.err:%v", err)
	}
	return OK(body), nil
}
