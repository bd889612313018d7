package types

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RevertRule maps a substring of a node or contract error to a failure kind
type RevertRule struct {
	Pattern string
	Kind    ErrorKind
}

// RevertRules is evaluated top to bottom; the first matching pattern wins.
// Patterns are lower case and matched against the lower cased message and decoded revert reason.
var RevertRules = []RevertRule{
	{Pattern: "proof already used", Kind: ErrorKindProofReplay},
	{Pattern: "proof has been used", Kind: ErrorKindProofReplay},
	{Pattern: "nullifier already used", Kind: ErrorKindProofReplay},
	{Pattern: "insufficient funds for gas", Kind: ErrorKindInsufficientGasReserve},
	{Pattern: "insufficient funds for transfer", Kind: ErrorKindInsufficientGasReserve},
	{Pattern: "execution reverted", Kind: ErrorKindWouldRevert},
	{Pattern: "invalid proof", Kind: ErrorKindWouldRevert},
	{Pattern: "vm exception", Kind: ErrorKindWouldRevert},
	{Pattern: "revert", Kind: ErrorKindWouldRevert},
}

// ClassifyMessage looks a raw message up in RevertRules
func ClassifyMessage(msg string) (ErrorKind, bool) {
	lower := strings.ToLower(msg)
	for _, rule := range RevertRules {
		if strings.Contains(lower, rule.Pattern) {
			return rule.Kind, true
		}
	}
	return "", false
}

// RevertReason returns the decoded Error(string) payload of a JSON-RPC revert, or the plain message
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if raw, decErr := hexutil.Decode(hexData); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}
	return err.Error()
}

// ClassifyEstimateError decides whether a gas estimation failure is a contract revert
// (proof replay, generic revert, funding) or a node/transport problem.
func ClassifyEstimateError(err error) (ErrorKind, string) {
	reason := RevertReason(err)
	if kind, ok := ClassifyMessage(reason); ok {
		return kind, reason
	}
	if kind, ok := ClassifyMessage(err.Error()); ok {
		return kind, reason
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return ErrorKindWouldRevert, reason
	}
	return ErrorKindEstimationInfrastructureFailure, reason
}
