// Package bytecode compares on-chain runtime code with deployment artifacts.
package bytecode

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Match describes how closely deployed code matches an artifact.
type Match string

const (
	MatchFull    Match = "full"
	MatchPartial Match = "partial"
	MatchNone    Match = "none"
	MatchNoCode  Match = "no-code"
)

// CBOR metadata marker (solc >=0.6.0): map(2) "ipfs"
var ipfsMarker = []byte{0xa2, 0x64, 0x69, 0x70, 0x66, 0x73}

// StripMetadata removes the CBOR metadata solc appends to runtime code.
// The last two bytes hold the big-endian length of the CBOR section.
func StripMetadata(code []byte) []byte {
	if len(code) >= 2 {
		n := int(code[len(code)-2])<<8 | int(code[len(code)-1])
		start := len(code) - 2 - n
		if n > 0 && start >= 0 && code[start]&0xe0 == 0xa0 {
			return code[:start]
		}
	}
	if idx := bytes.LastIndex(code, ipfsMarker); idx != -1 {
		return code[:idx]
	}
	return code
}

// Result is the outcome of a comparison.
type Result struct {
	Match   Match  `json:"match"`
	Message string `json:"message"`
}

// Compare compares deployed runtime code with the artifact's deployedBytecode
// hex string.
func Compare(deployed []byte, artifactHex string) Result {
	if len(deployed) == 0 {
		return Result{Match: MatchNoCode, Message: "No code at address"}
	}

	expected, err := hexutil.Decode(artifactHex)
	if err != nil {
		return Result{Match: MatchNone, Message: "Artifact deployedBytecode is not valid hex"}
	}

	if bytes.Equal(deployed, expected) {
		return Result{Match: MatchFull, Message: "Runtime code matches exactly including metadata"}
	}

	if bytes.Equal(StripMetadata(deployed), StripMetadata(expected)) {
		return Result{Match: MatchPartial, Message: "Executable code matches, metadata differs"}
	}

	return Result{Match: MatchNone, Message: "Runtime code does not match"}
}
