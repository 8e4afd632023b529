/**
 * @description
 * The administrative terminal for the ledger-service. A single text line is
 * parsed into a tagged Command, authorized against the caller's capability,
 * and dispatched through an exhaustive switch, so adding or removing verbs
 * is a compile-time-checked change.
 *
 * The capability check runs before any command-specific logic, including
 * for unrecognized verbs: a caller outside the privileged set learns
 * nothing about which commands exist.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lumenbank/ledger-service/internal/domain"
)

// MaxBalanceGrant caps the make-me-rich argument, in whole currency units.
const MaxBalanceGrant = 70000

type commandKind int

const (
	cmdList commandKind = iota
	cmdPurge
	cmdSetBalance
	cmdGrantAdmin
	cmdWhoAmI
	cmdHelp
	cmdUnknown
)

// Command is the parsed form of one admin terminal line.
type Command struct {
	Kind    commandKind
	Targets []string // ls arguments
	Email   string   // make-me-rich / make-admin subject
	Amount  int64    // make-me-rich amount, minor units
	Verb    string   // raw first token, for diagnostics
}

var (
	ErrForbidden      = errors.New("admin capability required")
	ErrUnknownCommand = errors.New("command not found")
	ErrInvalidCommand = errors.New("invalid command arguments")
)

// CommandResult is the payload answered to the terminal. Fields are only
// set by the commands that produce them.
type CommandResult struct {
	Users        []domain.User        `json:"users,omitempty"`
	Cards        []domain.CreditCard  `json:"cards,omitempty"`
	Transactions []domain.Transaction `json:"transactions,omitempty"`
	Content      interface{}          `json:"content,omitempty"`
}

// The cosmetic directory listing answered by a bare `ls`.
var terminalListing = []string{
	"users/", "cards/", "transactions/", "logs/", "config/",
	"server.conf", "server.log", "server.pid", "server.pub",
}

var helpText = []string{
	"Available commands:",
	"clear: Clear the terminal",
	"ls: List current or specific directory (users, cards, transactions, *)",
	"delete-all: Purge every table. Really.",
	"make-me-rich: Overwrites a balance - Usage: make-me-rich <email> <amount> [at most 70k$]",
	"make-admin: Grant the admin role - Usage: make-admin <email>",
	"whoami: Who are you?",
	"help: display what you are looking at right now",
	"exit: kill terminal",
}

var unknownCommandText = []string{
	"Command not found",
	"List of available commands: ['help', 'clear', 'ls', 'whoami', 'logout']",
}

// ParseCommand splits a terminal line into a tagged Command. The verb is
// the first whitespace-delimited token, matched case-insensitively.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{Kind: cmdUnknown}, nil
	}

	cmd := Command{Verb: fields[0]}
	switch strings.ToLower(fields[0]) {
	case "ls":
		cmd.Kind = cmdList
		cmd.Targets = fields[1:]
	case "delete-all":
		cmd.Kind = cmdPurge
	case "make-me-rich":
		cmd.Kind = cmdSetBalance
		if len(fields) != 3 {
			return cmd, ErrInvalidCommand
		}
		amount, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || amount <= 0 || amount > MaxBalanceGrant {
			return cmd, ErrInvalidCommand
		}
		cmd.Email = fields[1]
		cmd.Amount = amount * 100 // whole units on the wire, cents in the ledger
	case "make-admin":
		cmd.Kind = cmdGrantAdmin
		if len(fields) != 2 {
			return cmd, ErrInvalidCommand
		}
		cmd.Email = fields[1]
	case "whoami":
		cmd.Kind = cmdWhoAmI
	case "help":
		cmd.Kind = cmdHelp
	default:
		cmd.Kind = cmdUnknown
	}
	return cmd, nil
}

// ExecuteCommand authorizes and runs one admin terminal line for the given
// caller. The capability gate runs before parsing results are acted on, for
// every verb including unknown ones.
func (s *Service) ExecuteCommand(ctx context.Context, caller *domain.User, line string) (*CommandResult, error) {
	if caller == nil || !caller.Role.Can(domain.CapabilityAdminister) {
		return nil, ErrForbidden
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		if errors.Is(err, ErrInvalidCommand) {
			return &CommandResult{Content: usageFor(cmd.Kind)}, err
		}
		return nil, err
	}

	switch cmd.Kind {
	case cmdList:
		return s.runList(ctx, cmd.Targets)
	case cmdPurge:
		result, err := s.repo.PurgeAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("purge failed: %w", err)
		}
		return &CommandResult{Content: result}, nil
	case cmdSetBalance:
		if err := s.repo.SetUserBalance(ctx, cmd.Email, cmd.Amount); err != nil {
			return nil, err
		}
		return &CommandResult{Content: fmt.Sprintf("Set %s's balance to %d", cmd.Email, cmd.Amount/100)}, nil
	case cmdGrantAdmin:
		if err := s.repo.SetUserRole(ctx, cmd.Email, domain.RoleAdmin); err != nil {
			return nil, err
		}
		return &CommandResult{Content: fmt.Sprintf("%s is now an admin", cmd.Email)}, nil
	case cmdWhoAmI:
		return &CommandResult{Content: caller.Name}, nil
	case cmdHelp:
		return &CommandResult{Content: helpText}, nil
	case cmdUnknown:
		return &CommandResult{Content: unknownCommandText}, ErrUnknownCommand
	}
	return nil, ErrUnknownCommand
}

// runList answers `ls`: bare invocations return the cosmetic listing, named
// targets return table snapshots, `*` returns everything.
func (s *Service) runList(ctx context.Context, targets []string) (*CommandResult, error) {
	if len(targets) == 0 {
		return &CommandResult{Content: terminalListing}, nil
	}

	result := &CommandResult{}
	wantAll := len(targets) == 1 && targets[0] == "*"
	if wantAll {
		result.Content = terminalListing
	}
	for _, target := range targets {
		if target == "users" || wantAll {
			users, err := s.repo.ListUsers(ctx)
			if err != nil {
				return nil, err
			}
			result.Users = users
		}
		if target == "cards" || wantAll {
			cards, err := s.repo.ListCards(ctx)
			if err != nil {
				return nil, err
			}
			result.Cards = cards
		}
		if target == "transactions" || wantAll {
			transactions, err := s.repo.ListTransactions(ctx)
			if err != nil {
				return nil, err
			}
			result.Transactions = transactions
		}
	}
	return result, nil
}

func usageFor(kind commandKind) string {
	switch kind {
	case cmdSetBalance:
		return "Invalid arguments:\tUsage:\nmake-me-rich email amount[less than 70k$]"
	case cmdGrantAdmin:
		return "Invalid arguments:\tUsage:\nmake-admin email"
	}
	return "Invalid arguments"
}
