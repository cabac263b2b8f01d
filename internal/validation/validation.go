// Package validation provides input validation for contraverify.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/mod/semver"
)

// Network names follow hardhat's config keys: a letter, then letters,
// digits, hyphens or underscores.
var networkNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// ValidateNetworkName validates a network name. Network names become
// directory names under the deployments root, so separators are rejected.
func ValidateNetworkName(name string) error {
	if name == "" {
		return errors.New("network name cannot be empty")
	}
	if !networkNameRegex.MatchString(name) {
		return errors.New("invalid network name: must start with a letter and contain only letters, digits, '-' or '_'")
	}
	return nil
}

// ValidateCompilerVersion validates a solc version such as "0.8.17" or
// "0.8.17+commit.8df45f5f".
func ValidateCompilerVersion(v string) error {
	normalized := NormalizeVersion(v)
	if normalized == "" {
		return errors.New("compiler version cannot be empty")
	}
	if !semver.IsValid("v" + normalized) {
		return errors.New("invalid compiler version: must be in format X.Y.Z or X.Y.Z+commit.HASH")
	}
	mainPart := strings.SplitN(strings.SplitN(normalized, "+", 2)[0], "-", 2)[0]
	if strings.Count(mainPart, ".") < 2 {
		return errors.New("invalid compiler version: must be in format X.Y.Z (major.minor.patch)")
	}
	return nil
}

// CompilerVersionTag returns the "v"-prefixed form explorers expect.
func CompilerVersionTag(v string) string {
	return "v" + NormalizeVersion(v)
}

// NormalizeVersion normalizes a version string (strips leading 'v')
func NormalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// CompareVersions compares two versions, ignoring build metadata.
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1, v2 string) int {
	return semver.Compare("v"+NormalizeVersion(v1), "v"+NormalizeVersion(v2))
}

// ValidateAddress validates an Ethereum address.
func ValidateAddress(addr string) error {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return errors.New("invalid address: must start with 0x")
	}
	if !common.IsHexAddress(addr) {
		return errors.New("invalid address: must be 0x followed by 40 hex characters")
	}
	return nil
}

// HasValidChecksum reports whether addr is either single-case or a correct
// EIP-55 mixed-case checksum.
func HasValidChecksum(addr string) bool {
	body := addr[2:]
	if strings.ToLower(body) == body || strings.ToUpper(body) == body {
		return true
	}
	return common.HexToAddress(addr).Hex() == addr
}

// ValidatePrivateKey validates a hex secp256k1 private key, with or without
// a 0x prefix.
func ValidatePrivateKey(key string) error {
	if key == "" {
		return errors.New("private key cannot be empty")
	}
	if _, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x")); err != nil {
		return errors.New("invalid private key: must be 32 bytes of hex")
	}
	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID uint64) error {
	if chainID == 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}
