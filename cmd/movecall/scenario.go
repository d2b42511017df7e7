package main

import (
	"context"
	"fmt"

	"github.com/opendlt/movecall/bridge/nodeapi"
	"github.com/opendlt/movecall/types/move"
)

// messageScenario stores a message through the message module and reads it back
type messageScenario struct {
	env     *environment
	module  move.Address
	message string
}

type scenarioResult struct {
	Outcome *nodeapi.Outcome `json:"outcome"`
	Stored  string           `json:"stored"`
}

func (s *messageScenario) run(ctx context.Context) (*scenarioResult, error) {
	log := s.env.logger

	chainID, err := s.env.chainID(ctx)
	if err != nil {
		return nil, err
	}

	seq, err := s.env.account.Sync(ctx, s.env.client)
	if err != nil {
		return nil, err
	}
	log.Info("account %s at sequence number %d on chain %d", s.env.account.Address(), seq, chainID)

	call, err := move.NewFunctionCall(s.module.String()+"::message::set_message", nil, move.UTF8(s.message))
	if err != nil {
		return nil, err
	}

	tx, err := s.env.builder.BuildCall(call, s.env.account, chainID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.env.client.SubmitAndWait(ctx, tx)
	if err := nodeapi.Verify(outcome, err); err != nil {
		return &scenarioResult{Outcome: outcome}, err
	}
	log.Info("transaction %s committed at version %d", outcome.Hash, outcome.Version)

	req, err := nodeapi.NewViewRequest(s.module.String()+"::message::get_message", nil, s.env.account.Address())
	if err != nil {
		return nil, err
	}
	values, err := s.env.client.View(ctx, req)
	if err != nil {
		return &scenarioResult{Outcome: outcome}, err
	}
	stored, err := storedMessage(values)
	if err != nil {
		return &scenarioResult{Outcome: outcome}, err
	}

	result := &scenarioResult{Outcome: outcome, Stored: stored}
	if stored != s.message {
		return result, fmt.Errorf("stored message %q does not match submitted %q", stored, s.message)
	}
	return result, nil
}

// storedMessage extracts the single string get_message returns
func storedMessage(values nodeapi.ViewResult) (string, error) {
	if len(values) != 1 {
		return "", fmt.Errorf("get_message returned %d values, expected 1", len(values))
	}
	return values.String(0)
}
