package vault

import (
	"bytes"
	"fmt"
	"strings"
)

// NameLength is the fixed size of a vault name on the ledger.
const NameLength = 32

// EncodeName right-pads name with spaces to NameLength bytes.
func EncodeName(name string) ([NameLength]byte, error) {
	var out [NameLength]byte
	if strings.TrimSpace(name) == "" {
		return out, fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > NameLength {
		return out, fmt.Errorf("%w: %q is longer than %d bytes", ErrInvalidName, name, NameLength)
	}
	copy(out[:], name)
	for i := len(name); i < NameLength; i++ {
		out[i] = ' '
	}
	return out, nil
}

// DecodeName trims the padding EncodeName adds, along with NUL bytes.
func DecodeName(name [NameLength]byte) string {
	return string(bytes.TrimRight(name[:], " \x00"))
}

func isZeroName(name [NameLength]byte) bool {
	return name == [NameLength]byte{}
}
