package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/contractmind/backend/internal/agents"
	"github.com/contractmind/backend/internal/catalog"
	"github.com/contractmind/backend/internal/chain"
	"github.com/contractmind/backend/internal/intent"
	"github.com/contractmind/backend/internal/streams"
	"github.com/contractmind/backend/internal/transactions"
	"github.com/contractmind/backend/internal/txn"
)

// historyWindow is how many stored turns feed back into the parser; the
// current message is excluded, so the window holds the preceding exchange.
const historyWindow = 5

// ProcessCommand is one inbound chat message.
type ProcessCommand struct {
	AgentRef    string `json:"agentId"`
	Message     string `json:"message"`
	UserAddress string `json:"userAddress"`
}

// ResultCommand reports a transaction the user signed and broadcast.
// TargetAddress is optional; when absent the agent's target is recorded.
type ResultCommand struct {
	AgentRef      string `json:"agentId"`
	TxHash        string `json:"txHash"`
	UserAddress   string `json:"userAddress"`
	FunctionName  string `json:"functionName"`
	TargetAddress string `json:"targetAddress"`
}

// Reply is the chat response. When a transaction was prepared it carries the
// unsigned envelope for the wallet to sign.
type Reply struct {
	Response              string        `json:"response"`
	IsPreparedTransaction bool          `json:"isPreparedTransaction"`
	Transaction           *txn.Envelope `json:"preparedTransaction,omitempty"`
}

// Service runs the chat pipeline: resolve the agent, parse the message into
// an intent, then either answer, ask for missing parameters, execute a read
// query, or prepare an unsigned transaction.
type Service struct {
	directory *agents.Directory
	parser    *intent.Parser
	router    *txn.Router
	query     *txn.QueryExecutor
	chain     *chain.Client
	history   History
	records   transactions.System
	sink      streams.Sink
	logger    *slog.Logger
}

// NewService creates a chat service.
func NewService(
	directory *agents.Directory,
	parser *intent.Parser,
	router *txn.Router,
	query *txn.QueryExecutor,
	chainClient *chain.Client,
	history History,
	records transactions.System,
	sink streams.Sink,
	logger *slog.Logger,
) *Service {
	return &Service{
		directory: directory,
		parser:    parser,
		router:    router,
		query:     query,
		chain:     chainClient,
		history:   history,
		records:   records,
		sink:      sink,
		logger:    logger.With("system", "chat"),
	}
}

// Process handles one chat message end to end.
func (s *Service) Process(ctx context.Context, cmd ProcessCommand) (*Reply, error) {
	agent, err := s.directory.Resolve(ctx, cmd.AgentRef)
	if err != nil {
		return nil, err
	}

	cat, err := s.directory.Catalog(ctx, agent)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	agentID := agent.ID.String()

	s.append(ctx, AppendCommand{
		AgentID:     agentID,
		UserAddress: cmd.UserAddress,
		Role:        RoleUser,
		Content:     cmd.Message,
	})
	s.sink.PublishChat(ctx, streams.ChatEvent{
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Sender:    cmd.UserAddress,
		AgentID:   agentID,
		Role:      RoleUser,
		Content:   cmd.Message,
	})

	parsed := s.parser.Parse(ctx, intent.Request{
		Message:     cmd.Message,
		UserAddress: cmd.UserAddress,
		AgentName:   agent.Name,
		Catalog:     cat,
		History:     s.window(ctx, agentID, cmd.UserAddress),
	})

	reply := s.resolve(ctx, agent, cat, cmd, parsed)

	s.append(ctx, AppendCommand{
		AgentID:             agentID,
		UserAddress:         cmd.UserAddress,
		Role:                RoleAssistant,
		Content:             reply.Response,
		FunctionName:        parsed.FunctionName,
		RequiresTransaction: reply.IsPreparedTransaction,
	})
	s.sink.PublishChat(ctx, streams.ChatEvent{
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Sender:    cmd.UserAddress,
		AgentID:   agentID,
		Role:      RoleAssistant,
		Content:   reply.Response,
		Action:    parsed.Action,
	})

	return reply, nil
}

// resolve turns a parsed intent into a reply, following the intent's branch:
// conversational answer, missing-parameter ask, read query, or prepared
// transaction.
func (s *Service) resolve(ctx context.Context, agent *agents.Agent, cat *catalog.Catalog, cmd ProcessCommand, parsed intent.ParsedIntent) *Reply {
	if parsed.NeedsMoreInfo && len(parsed.MissingParams) > 0 {
		return &Reply{Response: intent.MissingParamsPrompt(parsed.MissingParams)}
	}

	if parsed.FunctionName == "" {
		return &Reply{Response: parsed.Response}
	}

	fn, ok := cat.Lookup(parsed.FunctionName)
	if !ok {
		return &Reply{Response: parsed.Response}
	}

	if !parsed.RequiresTransaction && fn.IsReadOnly() {
		return &Reply{Response: s.query.Execute(ctx, txn.QueryRequest{
			Target:       agent.TargetAddress(),
			Catalog:      cat,
			FunctionName: parsed.FunctionName,
			UserAddress:  cmd.UserAddress,
			Params:       parsed.Params,
		})}
	}

	if missing := intent.MissingParams(fn, parsed.Params); len(missing) > 0 {
		return &Reply{Response: intent.MissingParamsPrompt(missing)}
	}

	calldata, err := txn.Encode(fn, parsed.Params)
	if err != nil {
		s.logger.Warn("calldata encoding failed", "function", fn.Name, "error", err)
		return &Reply{Response: fmt.Sprintf("Error preparing transaction: %v", err)}
	}

	target := agent.TargetAddress()
	contractType := s.chain.DetectContractType(ctx, target)

	envelope, err := s.router.Route(ctx, txn.RouteRequest{
		AgentID:      agent.ID.Bytes32(),
		AgentName:    agent.Name,
		Target:       target,
		Caller:       common.HexToAddress(cmd.UserAddress),
		Calldata:     calldata,
		ContractType: contractType,
		FunctionName: fn.Name,
		Intent:       parsed,
	})
	if err != nil {
		s.logger.Error("transaction routing failed", "function", fn.Name, "error", err)
		return &Reply{Response: fmt.Sprintf("Error preparing transaction: %v", err)}
	}

	return &Reply{
		Response:              preparedMessage(fn.Name, parsed.Params),
		IsPreparedTransaction: true,
		Transaction:           envelope,
	}
}

// RecordTransactionResult looks up the receipt for a reported transaction,
// persists the outcome, and returns the confirmation message.
func (s *Service) RecordTransactionResult(ctx context.Context, cmd ResultCommand) (*Reply, error) {
	agent, err := s.directory.Resolve(ctx, cmd.AgentRef)
	if err != nil {
		return nil, err
	}
	agentID := agent.ID.String()

	target := cmd.TargetAddress
	if target == "" {
		target = agent.Target
	}

	record := transactions.InsertCommand{
		TxHash:        cmd.TxHash,
		UserAddress:   cmd.UserAddress,
		AgentID:       agentID,
		TargetAddress: target,
		FunctionName:  cmd.FunctionName,
		ExecutionMode: "wallet",
	}

	receipt, err := s.chain.Receipt(ctx, common.HexToHash(cmd.TxHash))
	if errors.Is(err, ethereum.NotFound) {
		record.Status = transactions.StatusPending
		if err := transactions.Upsert(ctx, s.records, record); err != nil {
			s.logger.Warn("pending transaction record failed", "hash", cmd.TxHash, "error", err)
		}

		response := fmt.Sprintf("⏳ Transaction submitted! Hash: `%s`\n\nYour transaction is pending confirmation...", cmd.TxHash)
		s.appendResult(ctx, agentID, cmd, response)
		s.publishTransaction(ctx, agentID, cmd, transactions.StatusPending, 0)
		return &Reply{Response: response}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch receipt %s: %w", cmd.TxHash, err)
	}

	status := transactions.StatusConfirmed
	errText := ""
	if receipt.Status == 0 {
		status = transactions.StatusFailed
		errText = "Transaction reverted"
	}

	record.Status = status
	if err := transactions.Upsert(ctx, s.records, record); err != nil {
		s.logger.Warn("transaction record failed", "hash", cmd.TxHash, "error", err)
	}

	blockNumber := receipt.BlockNumber.Int64()
	gasUsed := int64(receipt.GasUsed)
	if err := s.records.UpdateStatus(ctx, cmd.TxHash, transactions.StatusUpdate{
		Status:      status,
		BlockNumber: &blockNumber,
		GasUsed:     &gasUsed,
		Error:       errText,
	}); err != nil {
		s.logger.Warn("transaction status update failed", "hash", cmd.TxHash, "error", err)
	}

	var response string
	if status == transactions.StatusConfirmed {
		response = fmt.Sprintf(
			"✅ **Transaction Successful!**\n\n**Function:** %s\n**Transaction Hash:** `%s`\n**Block:** %d\n**Gas Used:** %d\n\nYour transaction has been confirmed on the blockchain! 🎉",
			cmd.FunctionName, cmd.TxHash, blockNumber, gasUsed)
	} else {
		response = fmt.Sprintf(
			"❌ **Transaction Failed**\n\n**Function:** %s\n**Transaction Hash:** `%s`\n**Block:** %d\n\nThe transaction was reverted. Please check your parameters and try again.",
			cmd.FunctionName, cmd.TxHash, blockNumber)
	}

	s.appendResult(ctx, agentID, cmd, response)
	s.publishTransaction(ctx, agentID, cmd, status, gasUsed)
	return &Reply{Response: response}, nil
}

// HistoryFor returns the stored conversation between a user and an agent.
func (s *Service) HistoryFor(ctx context.Context, agentRef, userAddress string, limit int) ([]Message, error) {
	agent, err := s.directory.Resolve(ctx, agentRef)
	if err != nil {
		return nil, err
	}
	return s.history.List(ctx, agent.ID.String(), userAddress, limit)
}

// window loads the recent conversation turns for the parser. History failures
// degrade to an empty window.
func (s *Service) window(ctx context.Context, agentID, userAddress string) []intent.Turn {
	messages, err := s.history.Window(ctx, agentID, userAddress, historyWindow)
	if err != nil {
		s.logger.Warn("history window unavailable", "agent", agentID, "error", err)
		return nil
	}

	// Drop the just-appended current message.
	if len(messages) > 0 && messages[len(messages)-1].Role == RoleUser {
		messages = messages[:len(messages)-1]
	}

	turns := make([]intent.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, intent.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

func (s *Service) append(ctx context.Context, cmd AppendCommand) {
	if _, err := s.history.Append(ctx, cmd); err != nil {
		s.logger.Warn("chat history append failed",
			"agent", cmd.AgentID,
			"role", cmd.Role,
			"error", err)
	}
}

func (s *Service) appendResult(ctx context.Context, agentID string, cmd ResultCommand, response string) {
	s.append(ctx, AppendCommand{
		AgentID:      agentID,
		UserAddress:  cmd.UserAddress,
		Role:         RoleAssistant,
		Content:      response,
		FunctionName: cmd.FunctionName,
		TxHash:       cmd.TxHash,
	})
}

func (s *Service) publishTransaction(ctx context.Context, agentID string, cmd ResultCommand, status string, gasUsed int64) {
	s.sink.PublishTransaction(ctx, streams.TransactionEvent{
		Timestamp: time.Now().UTC(),
		TxHash:    cmd.TxHash,
		User:      cmd.UserAddress,
		AgentID:   agentID,
		Action:    cmd.FunctionName,
		Status:    status,
		GasUsed:   gasUsed,
	})
}

// preparedMessage renders the review-and-sign confirmation, with token
// amounts shown in whole units for the common mint/transfer shapes.
func preparedMessage(functionName string, params map[string]any) string {
	display := func(key string) (string, bool) {
		wei, ok := params[key].(*big.Int)
		if !ok {
			return "", false
		}
		scaled := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))
		return scaled.Text('f', 2), true
	}

	switch functionName {
	case "mint":
		if amount, ok := display("amount"); ok {
			return fmt.Sprintf("✅ Transaction prepared! Ready to mint %s tokens. Please review and sign.", amount)
		}
	case "transfer":
		if amount, ok := display("amount"); ok {
			return fmt.Sprintf("✅ Transaction prepared! Ready to transfer %s tokens. Please review and sign.", amount)
		}
	}
	return fmt.Sprintf("✅ Transaction prepared! Ready to call %s. Please review and sign.", functionName)
}
