package validation

import (
	"testing"
)

func TestValidateNetworkName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "bsc", false},
		{"camel case", "bscTestnet", false},
		{"with hyphen", "arbitrum-one", false},
		{"with digits", "polygon2", false},
		{"empty", "", true},
		{"starts with digit", "1bsc", true},
		{"path traversal", "../bsc", true},
		{"slash", "bsc/test", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNetworkName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNetworkName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCompilerVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "0.8.17", false},
		{"with commit", "0.8.17+commit.8df45f5f", false},
		{"with v prefix", "v0.8.17+commit.8df45f5f", false},
		{"nightly", "0.8.18-nightly.2022.11.23+commit.eb2f874e", false},
		{"no patch", "0.8", true},
		{"garbage", "latest", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCompilerVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCompilerVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestCompilerVersionTag(t *testing.T) {
	if got := CompilerVersionTag("0.8.17+commit.8df45f5f"); got != "v0.8.17+commit.8df45f5f" {
		t.Errorf("CompilerVersionTag() = %q", got)
	}
	if got := CompilerVersionTag("v0.8.17"); got != "v0.8.17" {
		t.Errorf("CompilerVersionTag() = %q", got)
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		v1, v2 string
		want   int
	}{
		{"0.8.17", "0.8.13", 1},
		{"0.8.9", "0.8.13", -1},
		{"0.8.17+commit.8df45f5f", "0.8.17", 0},
	}

	for _, tt := range tests {
		if got := CompareVersions(tt.v1, tt.v2); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.v1, tt.v2, got, tt.want)
		}
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid lowercase", "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c", false},
		{"valid checksum", "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", false},
		{"no prefix", "bb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c", true},
		{"too short", "0x1234", true},
		{"non hex", "0xzz4cdb9cbd36b01bd1cbaebf2de08d9173bc095c", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestHasValidChecksum(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", true},
		{"0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c", true},
		{"0xBB4CDB9CBD36B01BD1CBAEBF2DE08D9173BC095C", true},
		{"0xbB4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", false},
	}

	for _, tt := range tests {
		if got := HasValidChecksum(tt.input); got != tt.want {
			t.Errorf("HasValidChecksum(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestValidatePrivateKey(t *testing.T) {
	valid := "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	if err := ValidatePrivateKey(valid); err != nil {
		t.Errorf("ValidatePrivateKey(valid) error = %v", err)
	}
	if err := ValidatePrivateKey("0x" + valid); err != nil {
		t.Errorf("ValidatePrivateKey(0x valid) error = %v", err)
	}
	if err := ValidatePrivateKey("0x1234"); err == nil {
		t.Error("ValidatePrivateKey(short) expected error")
	}
	if err := ValidatePrivateKey(""); err == nil {
		t.Error("ValidatePrivateKey(empty) expected error")
	}
}

func TestValidateChainID(t *testing.T) {
	if err := ValidateChainID(56); err != nil {
		t.Errorf("ValidateChainID(56) error = %v", err)
	}
	if err := ValidateChainID(0); err == nil {
		t.Error("ValidateChainID(0) expected error")
	}
}
