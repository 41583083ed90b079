// Package errors provides structured, coded errors for the simulation engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Game configuration errors
	CodeGameNameEmpty           Code = "GAME_NAME_EMPTY"
	CodeGameInvalidCapacity     Code = "GAME_INVALID_CAPACITY"
	CodeGameInvalidAgentCount   Code = "GAME_INVALID_AGENT_COUNT"
	CodeGameInvalidRounds       Code = "GAME_INVALID_ROUNDS"
	CodeGameInvalidHistoryLimit Code = "GAME_INVALID_HISTORY_LIMIT"

	// Game state errors
	CodeGameInvalidStatusTransition Code = "GAME_INVALID_STATUS_TRANSITION"
	CodeGameStatusDisallowsOp       Code = "GAME_STATUS_DISALLOWS_OPERATION"
	CodeGameRosterFull              Code = "GAME_ROSTER_FULL"
	CodeGameRosterIncomplete        Code = "GAME_ROSTER_INCOMPLETE"
	CodeGameRoundsExhausted         Code = "GAME_ROUNDS_EXHAUSTED"

	// Agent errors
	CodeAgentInvalidType          Code = "AGENT_INVALID_TYPE"
	CodeAgentInvalidStrategy      Code = "AGENT_INVALID_STRATEGY"
	CodeAgentInvalidParameter     Code = "AGENT_INVALID_PARAMETER"
	CodeAgentCustomCodeMissing    Code = "AGENT_CUSTOM_CODE_MISSING"
	CodeAgentCustomContextMissing Code = "AGENT_CUSTOM_CONTEXT_MISSING"
	CodeAgentNotHuman             Code = "AGENT_NOT_HUMAN"
	CodeAgentDecisionMissing      Code = "AGENT_DECISION_MISSING"

	// Sandbox errors
	CodeSandboxInvalidCode     Code = "SANDBOX_INVALID_CODE"
	CodeSandboxExecutionFailed Code = "SANDBOX_EXECUTION_FAILED"
	CodeSandboxTimeout         Code = "SANDBOX_TIMEOUT"

	// Lookup errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeGameNotFound  Code = "GAME_NOT_FOUND"
	CodeAgentNotFound Code = "AGENT_NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeGameNameEmpty,
		CodeGameInvalidCapacity,
		CodeGameInvalidAgentCount,
		CodeGameInvalidRounds,
		CodeGameInvalidHistoryLimit,
		CodeAgentInvalidType,
		CodeAgentInvalidStrategy,
		CodeAgentInvalidParameter,
		CodeAgentCustomCodeMissing,
		CodeAgentCustomContextMissing,
		CodeSandboxInvalidCode:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeGameInvalidStatusTransition,
		CodeGameStatusDisallowsOp,
		CodeGameRosterFull,
		CodeGameRosterIncomplete,
		CodeGameRoundsExhausted,
		CodeAgentNotHuman,
		CodeAgentDecisionMissing:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeGameNotFound,
		CodeAgentNotFound:
		return codes.NotFound

	case CodeSandboxExecutionFailed:
		return codes.Aborted

	case CodeSandboxTimeout:
		return codes.DeadlineExceeded

	default:
		return codes.Internal
	}
}
