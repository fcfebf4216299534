// Package catalog parses raw contract ABI descriptions into a typed function
// catalog. Each agent's catalog is resolved once at load time and provides
// name lookup, canonical signatures, and 4-byte selectors for the rest of
// the transaction pipeline.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Mutability classifies a function's state mutability.
type Mutability string

// State mutability classes per the contract ABI specification.
const (
	Pure       Mutability = "pure"
	View       Mutability = "view"
	NonPayable Mutability = "nonpayable"
	Payable    Mutability = "payable"
)

// Param is a single named, typed function parameter.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Function describes one callable member of an agent's ABI, including
// whether the agent owner has authorized it for mediated execution.
type Function struct {
	Name            string     `json:"name"`
	Inputs          []Param    `json:"inputs"`
	Outputs         []Param    `json:"outputs"`
	StateMutability Mutability `json:"stateMutability"`
	Authorized      bool       `json:"authorized"`
}

// Signature returns the canonical signature, e.g. "stake(uint256)".
func (f *Function) Signature() string {
	types := make([]string, len(f.Inputs))
	for i, in := range f.Inputs {
		types[i] = in.Type
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(types, ","))
}

// Selector returns the 4-byte function selector: the leading bytes of the
// keccak256 hash of the canonical signature.
func (f *Function) Selector() [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(f.Signature()))[:4])
	return sel
}

// IsReadOnly reports whether calling the function cannot change chain state.
func (f *Function) IsReadOnly() bool {
	return f.StateMutability == Pure || f.StateMutability == View
}

// InputArgs builds the go-ethereum argument list for the function inputs,
// used for calldata encoding.
func (f *Function) InputArgs() (abi.Arguments, error) {
	return buildArgs(f.Inputs)
}

// OutputArgs builds the go-ethereum argument list for the function outputs,
// used for return-data decoding.
func (f *Function) OutputArgs() (abi.Arguments, error) {
	return buildArgs(f.Outputs)
}

func buildArgs(params []Param) (abi.Arguments, error) {
	args := make(abi.Arguments, len(params))
	for i, p := range params {
		t, err := abi.NewType(p.Type, "", nil)
		if err != nil {
			return nil, fmt.Errorf("parse type %q for %q: %w", p.Type, p.Name, err)
		}
		args[i] = abi.Argument{Name: p.Name, Type: t}
	}
	return args, nil
}

// Catalog is the ordered function list derived from one agent's ABI,
// indexed by function name.
type Catalog struct {
	functions []Function
	byName    map[string]int
}

type rawEntry struct {
	Type            string  `json:"type"`
	Name            string  `json:"name"`
	Inputs          []Param `json:"inputs"`
	Outputs         []Param `json:"outputs"`
	StateMutability string  `json:"stateMutability"`
}

// Parse extracts the function members of a raw JSON ABI and marks each with
// its authorization status. Non-function entries (events, constructors,
// errors) are skipped. A nil ABI yields an empty catalog.
func Parse(raw json.RawMessage, authorized map[string]bool) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]int)}
	if len(raw) == 0 {
		return c, nil
	}

	var entries []rawEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	for _, e := range entries {
		if e.Type != "function" || e.Name == "" {
			continue
		}
		if _, exists := c.byName[e.Name]; exists {
			continue
		}

		mutability := Mutability(e.StateMutability)
		if mutability == "" {
			mutability = NonPayable
		}

		fn := Function{
			Name:            e.Name,
			Inputs:          e.Inputs,
			Outputs:         e.Outputs,
			StateMutability: mutability,
			Authorized:      authorized[e.Name],
		}
		c.byName[fn.Name] = len(c.functions)
		c.functions = append(c.functions, fn)
	}

	return c, nil
}

// Lookup returns the function with the given name, if present.
func (c *Catalog) Lookup(name string) (*Function, bool) {
	idx, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return &c.functions[idx], true
}

// Functions returns the catalog's functions in declaration order.
func (c *Catalog) Functions() []Function {
	return c.functions
}

// Empty reports whether the catalog contains no functions.
func (c *Catalog) Empty() bool {
	return len(c.functions) == 0
}

// Len returns the number of functions in the catalog.
func (c *Catalog) Len() int {
	return len(c.functions)
}
