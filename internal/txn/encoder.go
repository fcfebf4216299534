// Package txn builds unsigned transaction envelopes: calldata encoding,
// hub/direct routing with gas estimation, and read-only query execution.
package txn

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/contractmind/backend/internal/catalog"
)

// Encode builds selector-prefixed calldata for the function from named
// parameters. Arguments are taken in declared input order; every input must
// be present and castable to its ABI type.
func Encode(fn *catalog.Function, params map[string]any) ([]byte, error) {
	args := make([]any, len(fn.Inputs))
	for i, in := range fn.Inputs {
		value, ok := params[in.Name]
		if !ok || value == nil {
			return nil, encodingErrorf(fn.Name, "missing argument %q", in.Name)
		}

		cast, err := castValue(value, in.Type)
		if err != nil {
			return nil, encodingErrorf(fn.Name, "argument %q: %v", in.Name, err)
		}
		args[i] = cast
	}

	abiArgs, err := fn.InputArgs()
	if err != nil {
		return nil, encodingErrorf(fn.Name, "%v", err)
	}

	packed, err := abiArgs.Pack(args...)
	if err != nil {
		return nil, encodingErrorf(fn.Name, "%v", err)
	}

	selector := fn.Selector()
	return append(selector[:], packed...), nil
}

// castValue converts a loosely-typed parameter value into the Go
// representation go-ethereum's ABI packer expects for the declared type.
func castValue(value any, abiType string) (any, error) {
	switch {
	case abiType == "address":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected address string, got %T", value)
		}
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil

	case abiType == "bool":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		return b, nil

	case abiType == "string":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return s, nil

	case abiType == "bytes":
		return castBytes(value)

	case abiType == "bytes32":
		data, err := castBytes(value)
		if err != nil {
			return nil, err
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("bytes32 value too long: %d bytes", len(data))
		}
		var fixed [32]byte
		copy(fixed[:], data)
		return fixed, nil

	case strings.HasPrefix(abiType, "uint") || strings.HasPrefix(abiType, "int"):
		if strings.HasSuffix(abiType, "[]") {
			return castBigIntSlice(value)
		}
		return castBigInt(value)

	case abiType == "address[]":
		return castAddressSlice(value)

	default:
		return nil, fmt.Errorf("unsupported type %q", abiType)
	}
}

func castBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return v, nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("non-integral number %v", v)
		}
		return big.NewInt(int64(v)), nil
	case string:
		n, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
		if !ok {
			return nil, fmt.Errorf("non-numeric value %q", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("expected integer, got %T", value)
	}
}

func castBigIntSlice(value any) ([]*big.Int, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", value)
	}

	out := make([]*big.Int, len(items))
	for i, item := range items {
		n, err := castBigInt(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

func castAddressSlice(value any) ([]common.Address, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", value)
	}

	out := make([]common.Address, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, fmt.Errorf("index %d: invalid address %v", i, item)
		}
		out[i] = common.HexToAddress(s)
	}
	return out, nil
}

func castBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		data, err := hex.DecodeString(strings.TrimPrefix(v, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q", v)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("expected bytes, got %T", value)
	}
}
