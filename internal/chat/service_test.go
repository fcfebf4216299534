package chat_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/contractmind/backend/internal/agents"
	"github.com/contractmind/backend/internal/chain"
	"github.com/contractmind/backend/internal/chat"
	"github.com/contractmind/backend/internal/config"
	"github.com/contractmind/backend/internal/intent"
	"github.com/contractmind/backend/internal/streams"
	"github.com/contractmind/backend/internal/transactions"
	"github.com/contractmind/backend/internal/txn"
)

const (
	agentIDHex  = "0x1111111111111111111111111111111111111111111111111111111111111111"
	userAddress = "0x2222222222222222222222222222222222222222"
)

var targetAddr = common.HexToAddress("0x3333333333333333333333333333333333333333")

const tokenABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
		"inputs":[{"name":"account","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"stake","stateMutability":"nonpayable",
		"inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
		"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
		"outputs":[{"name":"","type":"bool"}]}
]`

type stubAgents struct {
	agents.System
	agent *agents.Agent
}

func (s *stubAgents) GetByID(ctx context.Context, id agents.ID) (*agents.Agent, error) {
	if id == s.agent.ID {
		return s.agent, nil
	}
	return nil, agents.ErrNotFound
}

func (s *stubAgents) GetByName(ctx context.Context, name string) (*agents.Agent, error) {
	if strings.EqualFold(name, s.agent.Name) {
		return s.agent, nil
	}
	return nil, agents.ErrNotFound
}

func (s *stubAgents) Authorizations(ctx context.Context, id agents.ID) (map[string]bool, error) {
	return map[string]bool{
		"balanceOf": true,
		"decimals":  true,
		"stake":     true,
		"transfer":  true,
	}, nil
}

type memHistory struct {
	messages []chat.Message
	nextID   int64
}

func (h *memHistory) Append(ctx context.Context, cmd chat.AppendCommand) (*chat.Message, error) {
	h.nextID++
	m := chat.Message{
		ID:                  h.nextID,
		AgentID:             cmd.AgentID,
		UserAddress:         cmd.UserAddress,
		Role:                cmd.Role,
		Content:             cmd.Content,
		FunctionName:        cmd.FunctionName,
		RequiresTransaction: cmd.RequiresTransaction,
		TxHash:              cmd.TxHash,
		CreatedAt:           time.Now().UTC(),
	}
	h.messages = append(h.messages, m)
	return &m, nil
}

func (h *memHistory) Window(ctx context.Context, agentID, userAddress string, limit int) ([]chat.Message, error) {
	messages := h.messages
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (h *memHistory) List(ctx context.Context, agentID, userAddress string, limit int) ([]chat.Message, error) {
	return h.Window(ctx, agentID, userAddress, limit)
}

type memRecords struct {
	byHash  map[string]*transactions.Transaction
	updates []transactions.StatusUpdate
}

func newMemRecords() *memRecords {
	return &memRecords{byHash: map[string]*transactions.Transaction{}}
}

func (r *memRecords) Insert(ctx context.Context, cmd transactions.InsertCommand) (*transactions.Transaction, error) {
	if _, ok := r.byHash[cmd.TxHash]; ok {
		return nil, transactions.ErrDuplicate
	}
	t := &transactions.Transaction{
		TxHash:        cmd.TxHash,
		UserAddress:   cmd.UserAddress,
		AgentID:       cmd.AgentID,
		TargetAddress: cmd.TargetAddress,
		FunctionName:  cmd.FunctionName,
		ExecutionMode: cmd.ExecutionMode,
		Status:        cmd.Status,
	}
	r.byHash[cmd.TxHash] = t
	return t, nil
}

func (r *memRecords) GetByHash(ctx context.Context, txHash string) (*transactions.Transaction, error) {
	if t, ok := r.byHash[txHash]; ok {
		return t, nil
	}
	return nil, transactions.ErrNotFound
}

func (r *memRecords) UpdateStatus(ctx context.Context, txHash string, update transactions.StatusUpdate) error {
	t, ok := r.byHash[txHash]
	if !ok {
		return transactions.ErrNotFound
	}
	t.Status = update.Status
	t.BlockNumber = update.BlockNumber
	t.GasUsed = update.GasUsed
	t.Error = update.Error
	r.updates = append(r.updates, update)
	return nil
}

func (r *memRecords) ListByUser(ctx context.Context, agentID, userAddress string, limit int) ([]transactions.Transaction, error) {
	return nil, nil
}

type captureSink struct {
	chats []streams.ChatEvent
	txs   []streams.TransactionEvent
}

func (s *captureSink) PublishChat(ctx context.Context, event streams.ChatEvent) {
	s.chats = append(s.chats, event)
}

func (s *captureSink) PublishTransaction(ctx context.Context, event streams.TransactionEvent) {
	s.txs = append(s.txs, event)
}

type scriptedRPC struct {
	nonce       uint64
	gasEstimate uint64
	gasPrice    *big.Int
	callFunc    func(msg ethereum.CallMsg) ([]byte, error)
	receipt     *types.Receipt
	receiptErr  error
}

func (s *scriptedRPC) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if s.callFunc != nil {
		return s.callFunc(msg)
	}
	return nil, errors.New("execution reverted")
}

func (s *scriptedRPC) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return s.gasEstimate, nil
}

func (s *scriptedRPC) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return s.nonce, nil
}

func (s *scriptedRPC) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return s.gasPrice, nil
}

func (s *scriptedRPC) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if s.receipt != nil {
		return s.receipt, nil
	}
	if s.receiptErr != nil {
		return nil, s.receiptErr
	}
	return nil, ethereum.NotFound
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func selector(signature string) [4]byte {
	var s [4]byte
	copy(s[:], crypto.Keccak256([]byte(signature)))
	return s
}

func packUint256(t *testing.T, value *big.Int) []byte {
	t.Helper()
	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := abi.Arguments{{Type: uint256Type}}.Pack(value)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func packUint8(t *testing.T, value uint8) []byte {
	t.Helper()
	uint8Type, err := abi.NewType("uint8", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := abi.Arguments{{Type: uint8Type}}.Pack(value)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

type fixture struct {
	service *chat.Service
	history *memHistory
	records *memRecords
	sink    *captureSink
}

func newFixture(t *testing.T, rpc *scriptedRPC) *fixture {
	t.Helper()

	id, err := agents.ParseID(agentIDHex)
	if err != nil {
		t.Fatal(err)
	}

	sys := &stubAgents{agent: &agents.Agent{
		ID:     id,
		Name:   "DeFi Staking",
		Owner:  "0x4444444444444444444444444444444444444444",
		Target: targetAddr.Hex(),
		ABI:    []byte(tokenABI),
		Active: true,
	}}

	cfg := &config.BlockchainConfig{
		RPCURL:      "http://localhost:8545",
		ChainID:     50312,
		CallTimeout: "5s",
	}
	chainClient := chain.NewClient(rpc, cfg, discard())

	history := &memHistory{}
	records := newMemRecords()
	sink := &captureSink{}

	service := chat.NewService(
		agents.NewDirectory(sys, nil, chainClient, time.Minute, discard()),
		intent.NewParser(nil, discard()),
		txn.NewRouter(chainClient, discard()),
		txn.NewQueryExecutor(chainClient, discard()),
		chainClient,
		history,
		records,
		sink,
		discard(),
	)

	return &fixture{service: service, history: history, records: records, sink: sink}
}

func TestProcessGreeting(t *testing.T) {
	f := newFixture(t, &scriptedRPC{})

	reply, err := f.service.Process(context.Background(), chat.ProcessCommand{
		AgentRef:    agentIDHex,
		Message:     "hello there",
		UserAddress: userAddress,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if reply.IsPreparedTransaction {
		t.Error("greeting should not prepare a transaction")
	}
	if !strings.Contains(reply.Response, "DeFi Staking") {
		t.Errorf("response = %q", reply.Response)
	}

	if len(f.history.messages) != 2 {
		t.Fatalf("history length = %d, want 2", len(f.history.messages))
	}
	if f.history.messages[0].Role != chat.RoleUser || f.history.messages[1].Role != chat.RoleAssistant {
		t.Error("history should hold the user turn then the assistant turn")
	}
	if len(f.sink.chats) != 2 {
		t.Errorf("published chat events = %d, want 2", len(f.sink.chats))
	}
}

func TestProcessPreparesTransaction(t *testing.T) {
	rpc := &scriptedRPC{nonce: 5, gasEstimate: 90000, gasPrice: big.NewInt(1000000000)}
	f := newFixture(t, rpc)

	reply, err := f.service.Process(context.Background(), chat.ProcessCommand{
		AgentRef:    agentIDHex,
		Message:     "stake 100 USDC",
		UserAddress: userAddress,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if !reply.IsPreparedTransaction {
		t.Fatal("expected a prepared transaction")
	}
	if reply.Transaction == nil {
		t.Fatal("missing envelope")
	}
	if reply.Transaction.To != targetAddr.Hex() {
		t.Errorf("to = %s, want target", reply.Transaction.To)
	}
	if reply.Transaction.Nonce != 5 {
		t.Errorf("nonce = %d", reply.Transaction.Nonce)
	}
	if reply.Transaction.Description != "Stake 100 USDC on DeFi Staking" {
		t.Errorf("description = %q", reply.Transaction.Description)
	}
	if reply.Response != "✅ Transaction prepared! Ready to call stake. Please review and sign." {
		t.Errorf("response = %q", reply.Response)
	}

	assistant := f.history.messages[len(f.history.messages)-1]
	if assistant.FunctionName != "stake" || !assistant.RequiresTransaction {
		t.Errorf("assistant turn = %+v", assistant)
	}
}

func TestProcessMissingParamsAsks(t *testing.T) {
	f := newFixture(t, &scriptedRPC{})

	reply, err := f.service.Process(context.Background(), chat.ProcessCommand{
		AgentRef:    agentIDHex,
		Message:     "please transfer some tokens",
		UserAddress: userAddress,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	want := "I need the following parameters to proceed: to (address), amount (uint256). Could you provide them?"
	if reply.Response != want {
		t.Errorf("response = %q", reply.Response)
	}
	if reply.IsPreparedTransaction {
		t.Error("missing params should not prepare a transaction")
	}
}

func TestProcessViewQuery(t *testing.T) {
	balanceOf := selector("balanceOf(address)")
	decimals := selector("decimals()")

	raw, _ := new(big.Int).SetString("2500000000000000000", 10)
	rpc := &scriptedRPC{}
	rpc.callFunc = func(msg ethereum.CallMsg) ([]byte, error) {
		if len(msg.Data) < 4 {
			return nil, errors.New("no selector")
		}
		var s [4]byte
		copy(s[:], msg.Data[:4])
		switch s {
		case balanceOf:
			return packUint256(t, raw), nil
		case decimals:
			return packUint8(t, 18), nil
		default:
			return nil, errors.New("execution reverted")
		}
	}
	f := newFixture(t, rpc)

	reply, err := f.service.Process(context.Background(), chat.ProcessCommand{
		AgentRef:    agentIDHex,
		Message:     "what is my balance?",
		UserAddress: userAddress,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if reply.Response != "Your balance is 2.5000 tokens (raw: 2500000000000000000)" {
		t.Errorf("response = %q", reply.Response)
	}
	if reply.IsPreparedTransaction {
		t.Error("view query should not prepare a transaction")
	}
}

func TestProcessResolvesByName(t *testing.T) {
	f := newFixture(t, &scriptedRPC{})

	if _, err := f.service.Process(context.Background(), chat.ProcessCommand{
		AgentRef:    "DeFi Staking",
		Message:     "hello",
		UserAddress: userAddress,
	}); err != nil {
		t.Fatalf("process by name: %v", err)
	}
}

func TestProcessUnknownAgent(t *testing.T) {
	f := newFixture(t, &scriptedRPC{})

	_, err := f.service.Process(context.Background(), chat.ProcessCommand{
		AgentRef:    "nobody",
		Message:     "hello",
		UserAddress: userAddress,
	})
	if !errors.Is(err, agents.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTransactionResultPending(t *testing.T) {
	f := newFixture(t, &scriptedRPC{})

	reply, err := f.service.RecordTransactionResult(context.Background(), chat.ResultCommand{
		AgentRef:     agentIDHex,
		TxHash:       "0xabc",
		UserAddress:  userAddress,
		FunctionName: "stake",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if !strings.Contains(reply.Response, "pending confirmation") {
		t.Errorf("response = %q", reply.Response)
	}

	record, err := f.records.GetByHash(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if record.Status != transactions.StatusPending {
		t.Errorf("status = %s", record.Status)
	}
	if record.ExecutionMode != "wallet" {
		t.Errorf("execution mode = %s", record.ExecutionMode)
	}

	if len(f.sink.txs) != 1 || f.sink.txs[0].Status != transactions.StatusPending {
		t.Errorf("transaction events = %+v", f.sink.txs)
	}
}

func TestTransactionResultConfirmed(t *testing.T) {
	rpc := &scriptedRPC{receipt: &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(1234),
		GasUsed:     21000,
	}}
	f := newFixture(t, rpc)

	reply, err := f.service.RecordTransactionResult(context.Background(), chat.ResultCommand{
		AgentRef:     agentIDHex,
		TxHash:       "0xdef",
		UserAddress:  userAddress,
		FunctionName: "stake",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if !strings.Contains(reply.Response, "Transaction Successful") {
		t.Errorf("response = %q", reply.Response)
	}
	if !strings.Contains(reply.Response, "**Block:** 1234") {
		t.Errorf("response = %q", reply.Response)
	}

	record, err := f.records.GetByHash(context.Background(), "0xdef")
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if record.Status != transactions.StatusConfirmed {
		t.Errorf("status = %s", record.Status)
	}
	if record.BlockNumber == nil || *record.BlockNumber != 1234 {
		t.Errorf("block = %v", record.BlockNumber)
	}
	if record.GasUsed == nil || *record.GasUsed != 21000 {
		t.Errorf("gas used = %v", record.GasUsed)
	}

	if len(f.sink.txs) != 1 || f.sink.txs[0].Status != transactions.StatusConfirmed {
		t.Errorf("transaction events = %+v", f.sink.txs)
	}
	if f.sink.txs[0].GasUsed != 21000 {
		t.Errorf("event gas used = %d", f.sink.txs[0].GasUsed)
	}
}

func TestTransactionResultFailed(t *testing.T) {
	rpc := &scriptedRPC{receipt: &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		BlockNumber: big.NewInt(99),
		GasUsed:     50000,
	}}
	f := newFixture(t, rpc)

	reply, err := f.service.RecordTransactionResult(context.Background(), chat.ResultCommand{
		AgentRef:     agentIDHex,
		TxHash:       "0x123",
		UserAddress:  userAddress,
		FunctionName: "stake",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if !strings.Contains(reply.Response, "Transaction Failed") {
		t.Errorf("response = %q", reply.Response)
	}

	record, err := f.records.GetByHash(context.Background(), "0x123")
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if record.Status != transactions.StatusFailed {
		t.Errorf("status = %s", record.Status)
	}
	if record.Error != "Transaction reverted" {
		t.Errorf("error = %q", record.Error)
	}
}

func TestProcessHistoryWindowFeedsParser(t *testing.T) {
	f := newFixture(t, &scriptedRPC{})
	ctx := context.Background()

	for _, message := range []string{"hello", "thanks"} {
		if _, err := f.service.Process(ctx, chat.ProcessCommand{
			AgentRef:    agentIDHex,
			Message:     message,
			UserAddress: userAddress,
		}); err != nil {
			t.Fatalf("process %q: %v", message, err)
		}
	}

	if len(f.history.messages) != 4 {
		t.Errorf("history length = %d, want 4", len(f.history.messages))
	}
}
