package vault

import (
	"errors"
	"fmt"

	"vaultcontrol/pkg/solana/runtime"
)

// ErrorCode is a custom program error, numbered from 6000 like Anchor
// program errors.
type ErrorCode uint32

const (
	ErrorCodeInvalidAccount ErrorCode = 6000 + iota
	ErrorCodeUnauthorized
	ErrorCodeInvalidPassType
)

var errorMessages = map[ErrorCode]string{
	ErrorCodeInvalidAccount:  "Invalid account",
	ErrorCodeUnauthorized:    "Unauthorized access",
	ErrorCodeInvalidPassType: "Invalid pass type",
}

func (c ErrorCode) Error() string {
	if msg, ok := errorMessages[c]; ok {
		return fmt.Sprintf("custom program error %d: %s", uint32(c), msg)
	}
	return fmt.Sprintf("custom program error %d", uint32(c))
}

// CodeOf extracts the program error code carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var code ErrorCode
	if errors.As(err, &code) {
		return code, true
	}
	return 0, false
}

var (
	ErrInvalidAccount = ErrorCodeInvalidAccount
	ErrUnauthorized   = ErrorCodeUnauthorized

	ErrInvalidName            = errors.New("invalid vault name")
	ErrInvalidProgram         = errors.New("unexpected program account")
	ErrInvalidTokenDescriptor = errors.New("invalid token descriptor")
	ErrNotVault               = errors.New("account is not a vault")

	ErrMissingSignature     = runtime.ErrMissingSignature
	ErrInvalidSignature     = runtime.ErrInvalidSignature
	ErrAccountAlreadyExists = runtime.ErrAccountAlreadyExists
	ErrInsufficientFunds    = runtime.ErrInsufficientFunds
)
