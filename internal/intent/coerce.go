package intent

import (
	"log/slog"
	"math/big"
	"strings"

	"github.com/contractmind/backend/internal/catalog"
)

// Token quantities are scaled by 10^18. This assumes 18-decimal tokens;
// per-token decimals are not resolved here.
var weiScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

var addressPlaceholders = map[string]bool{
	"user":   true,
	"me":     true,
	"my":     true,
	"myself": true,
	"sender": true,
}

// Coerce normalizes raw extracted parameter values against the function's
// typed inputs. It is best-effort and never fails: address placeholders and
// non-hex values become the caller's address, numeric uint256 values are
// scaled to the token base unit, and anything inapplicable passes through
// unchanged.
//
// Callers must apply Coerce at most once per request: the scaling step
// cannot tell an already-scaled value from a raw one.
func Coerce(params map[string]any, inputs []catalog.Param, callerAddress string, logger *slog.Logger) map[string]any {
	if len(params) == 0 {
		return params
	}

	coerced := make(map[string]any, len(params))
	for name, value := range params {
		coerced[name] = value
	}

	for _, in := range inputs {
		value, ok := coerced[in.Name]
		if !ok || value == nil {
			continue
		}

		switch in.Type {
		case "address":
			s, ok := value.(string)
			if !ok {
				continue
			}
			if addressPlaceholders[strings.ToLower(s)] || !strings.HasPrefix(s, "0x") {
				logger.Info("replaced address placeholder with caller address",
					"param", in.Name,
					"value", s)
				coerced[in.Name] = callerAddress
			}

		case "uint256":
			scaled, ok := scaleToWei(value)
			if !ok {
				logger.Warn("could not scale amount, keeping original value",
					"param", in.Name,
					"value", value)
				continue
			}
			coerced[in.Name] = scaled
		}
	}

	return coerced
}

// scaleToWei interprets the value as a token-scaled decimal quantity and
// multiplies by 10^18, returning an integer.
func scaleToWei(value any) (*big.Int, bool) {
	rat := new(big.Rat)

	switch v := value.(type) {
	case string:
		if _, ok := rat.SetString(v); !ok {
			return nil, false
		}
	case float64:
		rat.SetFloat64(v)
	case int:
		rat.SetInt64(int64(v))
	case int64:
		rat.SetInt64(v)
	case *big.Int:
		rat.SetInt(v)
	default:
		return nil, false
	}

	rat.Mul(rat, new(big.Rat).SetInt(weiScale))
	// Sub-wei precision is truncated.
	return new(big.Int).Quo(rat.Num(), rat.Denom()), true
}
