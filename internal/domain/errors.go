package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrLockHeld           = errors.New("lock already held")
	ErrInvariantViolation = errors.New("ledger invariant violated")
	ErrLiveNotApproved    = errors.New("live trading not approved")
)

// FailureCode classifies an expected trade validation failure.
type FailureCode string

const (
	CodeStopLossMissing       FailureCode = "STOP_LOSS_MISSING"
	CodeStopLossTooTight      FailureCode = "STOP_LOSS_TOO_TIGHT"
	CodeStopLossTooWide       FailureCode = "STOP_LOSS_TOO_WIDE"
	CodeInvalidStopSide       FailureCode = "INVALID_STOP_SIDE"
	CodeInvalidTakeProfit     FailureCode = "INVALID_TAKE_PROFIT"
	CodeRiskRewardTooLow      FailureCode = "RISK_REWARD_TOO_LOW"
	CodeRiskPerTradeExceeded  FailureCode = "RISK_PER_TRADE_EXCEEDED"
	CodeDailyLossLimitReached FailureCode = "DAILY_LOSS_LIMIT_REACHED"
	CodePositionAlreadyOpen   FailureCode = "POSITION_ALREADY_OPEN"
	CodeInsufficientBalance   FailureCode = "INSUFFICIENT_BALANCE"
	CodePositionNotFound      FailureCode = "POSITION_NOT_FOUND"
	CodeOrderNotFound         FailureCode = "ORDER_NOT_FOUND"
	CodeInvalidPrice          FailureCode = "INVALID_PRICE"
	CodeInvalidSize           FailureCode = "INVALID_SIZE"
	CodeInvalidDecision       FailureCode = "INVALID_DECISION"
)

// Failure is a typed validation result. Two failures match under errors.Is
// when their codes are equal, so the sentinels below can be used as targets.
type Failure struct {
	Code FailureCode
	Msg  string
}

func (f *Failure) Error() string {
	if f.Msg == "" {
		return string(f.Code)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Msg)
}

// Is reports whether target is a Failure with the same code.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Code == f.Code
}

// Failf builds a Failure with a formatted message.
func Failf(code FailureCode, format string, args ...any) *Failure {
	return &Failure{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Sentinel failures for errors.Is matching.
var (
	ErrStopLossMissing       = &Failure{Code: CodeStopLossMissing}
	ErrStopLossTooTight      = &Failure{Code: CodeStopLossTooTight}
	ErrStopLossTooWide       = &Failure{Code: CodeStopLossTooWide}
	ErrInvalidStopSide       = &Failure{Code: CodeInvalidStopSide}
	ErrInvalidTakeProfit     = &Failure{Code: CodeInvalidTakeProfit}
	ErrRiskRewardTooLow      = &Failure{Code: CodeRiskRewardTooLow}
	ErrRiskPerTradeExceeded  = &Failure{Code: CodeRiskPerTradeExceeded}
	ErrDailyLossLimitReached = &Failure{Code: CodeDailyLossLimitReached}
	ErrPositionAlreadyOpen   = &Failure{Code: CodePositionAlreadyOpen}
	ErrInsufficientBalance   = &Failure{Code: CodeInsufficientBalance}
	ErrPositionNotFound      = &Failure{Code: CodePositionNotFound}
	ErrOrderNotFound         = &Failure{Code: CodeOrderNotFound}
	ErrInvalidPrice          = &Failure{Code: CodeInvalidPrice}
	ErrInvalidSize           = &Failure{Code: CodeInvalidSize}
)

// CodeOf returns the failure code carried by err, or "" when err is not a
// validation failure.
func CodeOf(err error) FailureCode {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return ""
}

// IsValidation reports whether err is an expected validation failure as
// opposed to a collaborator or invariant error.
func IsValidation(err error) bool {
	return CodeOf(err) != ""
}
