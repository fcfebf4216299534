package txn_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/contractmind/backend/internal/catalog"
	"github.com/contractmind/backend/internal/txn"
)

const encoderABI = `[
	{"type":"function","name":"stake","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"setPath","stateMutability":"nonpayable","inputs":[{"name":"path","type":"address[]"}],"outputs":[]}
]`

func encoderCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse(json.RawMessage(encoderABI), nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestEncodeSelectorPrefix(t *testing.T) {
	c := encoderCatalog(t)
	stake, _ := c.Lookup("stake")

	data, err := txn.Encode(stake, map[string]any{"amount": big.NewInt(1)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	selector := stake.Selector()
	if !bytes.Equal(data[:4], selector[:]) {
		t.Errorf("calldata prefix = %x, want %x", data[:4], selector)
	}
	if len(data) != 4+32 {
		t.Errorf("calldata length = %d, want 36", len(data))
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	c := encoderCatalog(t)
	transfer, _ := c.Lookup("transfer")

	to := "0x5555555555555555555555555555555555555555"
	amount := big.NewInt(12345)

	data, err := txn.Encode(transfer, map[string]any{"to": to, "amount": amount})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	args, err := transfer.InputArgs()
	if err != nil {
		t.Fatal(err)
	}
	values, err := args.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}

	if addr := values[0].(common.Address); addr != common.HexToAddress(to) {
		t.Errorf("to = %s", addr.Hex())
	}
	if n := values[1].(*big.Int); n.Cmp(amount) != 0 {
		t.Errorf("amount = %s", n)
	}
}

func TestEncodeStringAmount(t *testing.T) {
	c := encoderCatalog(t)
	stake, _ := c.Lookup("stake")

	data, err := txn.Encode(stake, map[string]any{"amount": "1000000000000000000"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	args, _ := stake.InputArgs()
	values, err := args.Unpack(data[4:])
	if err != nil {
		t.Fatal(err)
	}
	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	if n := values[0].(*big.Int); n.Cmp(want) != 0 {
		t.Errorf("amount = %s", n)
	}
}

func TestEncodeAddressSlice(t *testing.T) {
	c := encoderCatalog(t)
	setPath, _ := c.Lookup("setPath")

	_, err := txn.Encode(setPath, map[string]any{"path": []any{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
	}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestEncodeMissingArgument(t *testing.T) {
	c := encoderCatalog(t)
	transfer, _ := c.Lookup("transfer")

	_, err := txn.Encode(transfer, map[string]any{"amount": big.NewInt(1)})

	var encErr *txn.EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("err = %v, want EncodingError", err)
	}
}

func TestEncodeBadAddress(t *testing.T) {
	c := encoderCatalog(t)
	transfer, _ := c.Lookup("transfer")

	_, err := txn.Encode(transfer, map[string]any{"to": "not an address", "amount": big.NewInt(1)})

	var encErr *txn.EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("err = %v, want EncodingError", err)
	}
}

func TestEncodeNonNumericAmount(t *testing.T) {
	c := encoderCatalog(t)
	stake, _ := c.Lookup("stake")

	_, err := txn.Encode(stake, map[string]any{"amount": "lots"})

	var encErr *txn.EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("err = %v, want EncodingError", err)
	}
}
