package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"

	"github.com/xuperchain/xreplay/kernel/common/xaddress"
	"github.com/xuperchain/xreplay/lib/numeric"
)

// Args holds arguments already checked against a function's ParamSpec.
// uint256 values are *numeric.Int, addresses lowercase strings and
// datetimes unix seconds.
type Args struct {
	values map[string]interface{}
}

func (a *Args) get(name string) interface{} {
	if a == nil {
		return nil
	}
	return a.values[name]
}

func (a *Args) Has(name string) bool {
	return a.get(name) != nil
}

func (a *Args) Uint256(name string) *numeric.Int {
	if v, ok := a.get(name).(*numeric.Int); ok {
		return v
	}
	return numeric.Zero()
}

func (a *Args) Address(name string) string {
	v, _ := a.get(name).(string)
	return v
}

func (a *Args) String(name string) string {
	v, _ := a.get(name).(string)
	return v
}

func (a *Args) Bool(name string) bool {
	v, _ := a.get(name).(bool)
	return v
}

func (a *Args) Datetime(name string) int64 {
	v, _ := a.get(name).(int64)
	return v
}

// Raw returns a copy of the typed values
func (a *Args) Raw() map[string]interface{} {
	if a == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// Decode fills a struct from the arguments, fields match param names
// case-insensitively or by mapstructure tag
func (a *Args) Decode(out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(a.values)
}

// ValidateArgs checks raw arguments against params. Every problem is
// collected, the result is a single CallError. Keys "_1", "_2"... address
// params by 1-based position.
func ValidateArgs(params []ParamSpec, raw map[string]interface{}) (*Args, error) {
	var result *multierror.Error
	named := make(map[string]interface{}, len(raw))
	for key, value := range raw {
		name := key
		if pos, ok := positionalIndex(key); ok {
			if pos > len(params) {
				result = multierror.Append(result, fmt.Errorf("unknown argument %s", key))
				continue
			}
			name = params[pos-1].Name
		} else if !hasParam(params, key) {
			result = multierror.Append(result, fmt.Errorf("unknown argument %s", key))
			continue
		}
		if _, dup := named[name]; dup {
			result = multierror.Append(result, fmt.Errorf("argument %s given twice", name))
			continue
		}
		named[name] = value
	}

	values := make(map[string]interface{}, len(params))
	for _, p := range params {
		value, ok := named[p.Name]
		if !ok || value == nil {
			result = multierror.Append(result, fmt.Errorf("missing argument %s", p.Name))
			continue
		}
		typed, err := convertArg(p.Type, value)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("argument %s: %v", p.Name, err))
			continue
		}
		values[p.Name] = typed
	}

	if result != nil {
		result.ErrorFormat = joinErrors
		return nil, CallErrorf("invalid arguments: %s", result.Error())
	}
	return &Args{values: values}, nil
}

func joinErrors(es []error) string {
	msgs := make([]string, 0, len(es))
	for _, e := range es {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func positionalIndex(key string) (int, bool) {
	if !strings.HasPrefix(key, InternalPrefix) {
		return 0, false
	}
	pos, err := strconv.Atoi(key[1:])
	if err != nil || pos < 1 {
		return 0, false
	}
	return pos, true
}

func hasParam(params []ParamSpec, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func convertArg(tp ParamType, value interface{}) (interface{}, error) {
	switch tp {
	case ParamUint256:
		return toUint256(value)
	case ParamAddress:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expect address, got %T", value)
		}
		return xaddress.Normalize(s)
	case ParamString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expect string, got %T", value)
		}
		return s, nil
	case ParamBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			if v == "true" || v == "false" {
				return v == "true", nil
			}
		}
		return nil, fmt.Errorf("expect bool, got %v", value)
	case ParamDatetime:
		return toDatetime(value)
	}
	return nil, fmt.Errorf("unknown param type %s", tp)
}

func toUint256(value interface{}) (*numeric.Int, error) {
	switch v := value.(type) {
	case *numeric.Int:
		return v, nil
	case json.Number:
		return numeric.FromDecimal(v.String())
	case string:
		return numeric.FromDecimal(v)
	case int:
		return fromInt64(int64(v))
	case int32:
		return fromInt64(int64(v))
	case int64:
		return fromInt64(v)
	case uint32:
		return numeric.NewInt(uint64(v)), nil
	case uint64:
		return numeric.NewInt(v), nil
	case float64:
		// only integral values below 2^53 are exact
		if v < 0 || v != math.Trunc(v) || v > 1<<53 {
			return nil, fmt.Errorf("expect uint256, got %v", v)
		}
		return numeric.NewInt(uint64(v)), nil
	}
	return nil, fmt.Errorf("expect uint256, got %T", value)
}

func fromInt64(v int64) (*numeric.Int, error) {
	if v < 0 {
		return nil, numeric.ErrUnderflow
	}
	return numeric.NewInt(uint64(v)), nil
}

func toDatetime(value interface{}) (int64, error) {
	if s, ok := value.(string); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.Unix(), nil
		}
	}
	n, err := toUint256(value)
	if err != nil {
		return 0, fmt.Errorf("expect datetime, got %v", value)
	}
	ts, ok := n.Uint64()
	if !ok || ts > math.MaxInt64 {
		return 0, fmt.Errorf("datetime out of range: %s", n)
	}
	return int64(ts), nil
}
