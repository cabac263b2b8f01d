// Package abiargs converts JSON argument literals, as hardhat-deploy records
// them, into Go values accepted by go-ethereum's ABI packer.
package abiargs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Convert converts raw JSON values to typed values for the given arguments.
func Convert(args abi.Arguments, raw []json.RawMessage) ([]any, error) {
	if len(args) != len(raw) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(args), len(raw))
	}

	out := make([]any, len(args))
	for i, arg := range args {
		v, err := convertValue(arg.Type, raw[i])
		if err != nil {
			name := arg.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, arg.Type.String(), err)
		}
		out[i] = v.Interface()
	}
	return out, nil
}

// EncodeConstructor ABI-encodes constructor arguments against a contract ABI.
// The result is hex without a 0x prefix, the form explorers expect.
// A constructor that takes inputs must be given all of them, args or not.
func EncodeConstructor(abiJSON json.RawMessage, raw []json.RawMessage) (string, error) {
	if len(raw) == 0 && len(bytes.TrimSpace(abiJSON)) == 0 {
		return "", nil
	}
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return "", fmt.Errorf("parsing ABI: %w", err)
	}
	inputs := parsed.Constructor.Inputs
	if len(inputs) != len(raw) {
		return "", fmt.Errorf("constructor takes %d arguments, artifact has %d", len(inputs), len(raw))
	}
	if len(raw) == 0 {
		return "", nil
	}
	values, err := Convert(inputs, raw)
	if err != nil {
		return "", err
	}
	packed, err := parsed.Constructor.Inputs.Pack(values...)
	if err != nil {
		return "", fmt.Errorf("packing constructor arguments: %w", err)
	}
	return strings.TrimPrefix(hexutil.Encode(packed), "0x"), nil
}

// PackCall ABI-encodes a method call.
func PackCall(parsed abi.ABI, method string, raw []json.RawMessage) ([]byte, error) {
	m, ok := parsed.Methods[method]
	if !ok {
		return nil, fmt.Errorf("method %q not found in ABI", method)
	}
	values, err := Convert(m.Inputs, raw)
	if err != nil {
		return nil, err
	}
	return parsed.Pack(method, values...)
}

func convertValue(t abi.Type, raw json.RawMessage) (reflect.Value, error) {
	switch t.T {
	case abi.IntTy, abi.UintTy:
		return convertInteger(t, raw)
	case abi.BoolTy:
		return convertBool(raw)
	case abi.StringTy:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return reflect.Value{}, fmt.Errorf("expected string: %w", err)
		}
		return reflect.ValueOf(s), nil
	case abi.AddressTy:
		s, err := unquote(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if !common.IsHexAddress(s) {
			return reflect.Value{}, fmt.Errorf("invalid address %q", s)
		}
		return reflect.ValueOf(common.HexToAddress(s)), nil
	case abi.BytesTy:
		b, err := decodeHex(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil
	case abi.FixedBytesTy:
		b, err := decodeHex(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(b) > t.Size {
			return reflect.Value{}, fmt.Errorf("value has %d bytes, type holds %d", len(b), t.Size)
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v, nil
	case abi.SliceTy, abi.ArrayTy:
		return convertList(t, raw)
	case abi.TupleTy:
		return convertTuple(t, raw)
	default:
		return reflect.Value{}, fmt.Errorf("unsupported type %s", t.String())
	}
}

func convertInteger(t abi.Type, raw json.RawMessage) (reflect.Value, error) {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return reflect.Value{}, err
		}
	}

	var (
		n  *big.Int
		ok bool
	)
	if hex, found := strings.CutPrefix(s, "0x"); found {
		n, ok = new(big.Int).SetString(hex, 16)
	} else {
		n, ok = new(big.Int).SetString(s, 10)
	}
	if !ok {
		return reflect.Value{}, fmt.Errorf("invalid integer %q", s)
	}

	if t.T == abi.UintTy && n.Sign() < 0 {
		return reflect.Value{}, fmt.Errorf("negative value %s for unsigned type", n)
	}
	bits := n.BitLen()
	if t.T == abi.IntTy && n.Sign() < 0 {
		bits = new(big.Int).Add(n, big.NewInt(1)).BitLen()
	}
	limit := t.Size
	if t.T == abi.IntTy {
		limit--
	}
	if bits > limit {
		return reflect.Value{}, fmt.Errorf("value %s overflows %s", n, t.String())
	}

	typ := t.GetType()
	if typ == reflect.TypeOf(&big.Int{}) {
		return reflect.ValueOf(n), nil
	}
	v := reflect.New(typ).Elem()
	if t.T == abi.UintTy {
		v.SetUint(n.Uint64())
	} else {
		v.SetInt(n.Int64())
	}
	return v, nil
}

func convertBool(raw json.RawMessage) (reflect.Value, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return reflect.ValueOf(b), nil
	}
	s, err := unquote(raw)
	if err != nil {
		return reflect.Value{}, err
	}
	switch strings.ToLower(s) {
	case "true":
		return reflect.ValueOf(true), nil
	case "false":
		return reflect.ValueOf(false), nil
	}
	return reflect.Value{}, fmt.Errorf("invalid bool %q", s)
}

func convertList(t abi.Type, raw json.RawMessage) (reflect.Value, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return reflect.Value{}, fmt.Errorf("expected array: %w", err)
	}

	var v reflect.Value
	if t.T == abi.ArrayTy {
		if len(items) != t.Size {
			return reflect.Value{}, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
		}
		v = reflect.New(t.GetType()).Elem()
	} else {
		v = reflect.MakeSlice(t.GetType(), len(items), len(items))
	}

	for i, item := range items {
		elem, err := convertValue(*t.Elem, item)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		v.Index(i).Set(elem)
	}
	return v, nil
}

// convertTuple accepts either a positional array or an object keyed by the
// component names.
func convertTuple(t abi.Type, raw json.RawMessage) (reflect.Value, error) {
	fields := make([]json.RawMessage, len(t.TupleElems))

	var positional []json.RawMessage
	if err := json.Unmarshal(raw, &positional); err == nil {
		if len(positional) != len(fields) {
			return reflect.Value{}, fmt.Errorf("expected %d tuple components, got %d", len(fields), len(positional))
		}
		copy(fields, positional)
	} else {
		var named map[string]json.RawMessage
		if err := json.Unmarshal(raw, &named); err != nil {
			return reflect.Value{}, fmt.Errorf("expected array or object for tuple: %w", err)
		}
		for i, name := range t.TupleRawNames {
			v, ok := named[name]
			if !ok {
				return reflect.Value{}, fmt.Errorf("missing tuple component %q", name)
			}
			fields[i] = v
		}
	}

	v := reflect.New(t.GetType()).Elem()
	for i, elem := range t.TupleElems {
		fv, err := convertValue(*elem, fields[i])
		if err != nil {
			return reflect.Value{}, fmt.Errorf("component %d: %w", i, err)
		}
		v.Field(i).Set(fv)
	}
	return v, nil
}

func unquote(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected string: %w", err)
	}
	return s, nil
}

func decodeHex(raw json.RawMessage) ([]byte, error) {
	s, err := unquote(raw)
	if err != nil {
		return nil, err
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}
