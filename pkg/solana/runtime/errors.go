package runtime

import (
	"errors"

	"vaultcontrol/pkg/ledger"
)

var (
	ErrMissingSignature       = errors.New("missing required signature")
	ErrInvalidSignature       = errors.New("invalid transaction signature")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrUnknownProgram         = errors.New("unknown program")
	ErrNotEnoughAccountKeys   = errors.New("not enough account keys")
	ErrInvalidInstructionData = errors.New("invalid instruction data")
	ErrInvalidAccountData     = errors.New("invalid account data")
	ErrIllegalOwner           = errors.New("account not owned by the executing program")
	ErrReadonlyAccount        = errors.New("account is not writable")
	ErrInvalidSeeds           = errors.New("invalid signer seeds")
	ErrInvalidMint            = errors.New("invalid mint")
	ErrAlreadyInitialized     = errors.New("account already initialized")
	ErrCallDepth              = errors.New("cross-program invocation depth exceeded")
	ErrArithmeticOverflow     = errors.New("arithmetic overflow")

	// ErrAccountAlreadyExists is returned when an instruction tries to
	// allocate an address that already holds an account.
	ErrAccountAlreadyExists = ledger.ErrAccountAlreadyExists
	ErrAccountNotFound      = ledger.ErrAccountNotFound
	ErrAlreadyProcessed     = ledger.ErrDuplicateRecord
)
