package catalog_test

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/contractmind/backend/internal/catalog"
)

const stakingABI = `[
	{"type":"constructor","inputs":[{"name":"token","type":"address"}]},
	{"type":"event","name":"Staked","inputs":[{"name":"user","type":"address"},{"name":"amount","type":"uint256"}]},
	{"type":"function","name":"stake","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"claimRewards","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

func parseStaking(t *testing.T) *catalog.Catalog {
	t.Helper()

	c, err := catalog.Parse(json.RawMessage(stakingABI), map[string]bool{
		"stake":     true,
		"balanceOf": true,
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return c
}

func TestParseSkipsNonFunctions(t *testing.T) {
	c := parseStaking(t)

	if c.Len() != 4 {
		t.Fatalf("expected 4 functions, got %d", c.Len())
	}
	if _, ok := c.Lookup("Staked"); ok {
		t.Error("event entry should not appear in catalog")
	}
}

func TestParseAuthorization(t *testing.T) {
	c := parseStaking(t)

	stake, ok := c.Lookup("stake")
	if !ok {
		t.Fatal("stake not found")
	}
	if !stake.Authorized {
		t.Error("stake should be authorized")
	}

	withdraw, ok := c.Lookup("withdraw")
	if !ok {
		t.Fatal("withdraw not found")
	}
	if withdraw.Authorized {
		t.Error("withdraw should not be authorized")
	}
}

func TestSignatureAndSelector(t *testing.T) {
	c := parseStaking(t)

	cases := []struct {
		name      string
		signature string
		selector  string
	}{
		{"stake", "stake(uint256)", "a694fc3a"},
		{"withdraw", "withdraw(uint256)", "2e1a7d4d"},
		{"claimRewards", "claimRewards()", "372500ab"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fn, ok := c.Lookup(tc.name)
			if !ok {
				t.Fatalf("%s not found", tc.name)
			}
			if sig := fn.Signature(); sig != tc.signature {
				t.Errorf("signature = %q, want %q", sig, tc.signature)
			}
			sel := fn.Selector()
			if got := hex.EncodeToString(sel[:]); got != tc.selector {
				t.Errorf("selector = %s, want %s", got, tc.selector)
			}
		})
	}
}

func TestIsReadOnly(t *testing.T) {
	c := parseStaking(t)

	balance, _ := c.Lookup("balanceOf")
	if !balance.IsReadOnly() {
		t.Error("balanceOf should be read-only")
	}

	stake, _ := c.Lookup("stake")
	if stake.IsReadOnly() {
		t.Error("stake should not be read-only")
	}
}

func TestParseEmpty(t *testing.T) {
	c, err := catalog.Parse(nil, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !c.Empty() {
		t.Error("nil abi should yield empty catalog")
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := catalog.Parse(json.RawMessage(`{"not":"an array"}`), nil); err == nil {
		t.Error("expected error for malformed abi")
	}
}

func TestInputArgs(t *testing.T) {
	c := parseStaking(t)

	stake, _ := c.Lookup("stake")
	args, err := stake.InputArgs()
	if err != nil {
		t.Fatalf("input args: %v", err)
	}
	if len(args) != 1 || args[0].Type.String() != "uint256" {
		t.Errorf("unexpected args: %v", args)
	}
}
