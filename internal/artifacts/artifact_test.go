package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"Token.json", "Vault.json", ".chainId", ".hidden.json", "notes.txt", "MockOracle.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "solcInputs"), 0755))

	t.Run("applies file policy", func(t *testing.T) {
		paths, err := Discover(dir, DiscoverOptions{})
		require.NoError(t, err)
		require.Len(t, paths, 3)
		assert.Equal(t, "MockOracle.json", filepath.Base(paths[0]))
		assert.Equal(t, "Token.json", filepath.Base(paths[1]))
		assert.Equal(t, "Vault.json", filepath.Base(paths[2]))
	})

	t.Run("include list", func(t *testing.T) {
		paths, err := Discover(dir, DiscoverOptions{Contracts: []string{"vault"}})
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, "Vault.json", filepath.Base(paths[0]))
	})

	t.Run("exclude patterns", func(t *testing.T) {
		paths, err := Discover(dir, DiscoverOptions{Exclude: []string{"Mock", "V*t"}})
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, "Token.json", filepath.Base(paths[0]))
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := Discover(filepath.Join(dir, "nope"), DiscoverOptions{})
		require.Error(t, err)
	})
}

func TestIsArtifactFile(t *testing.T) {
	assert.True(t, IsArtifactFile("Token.json"))
	assert.False(t, IsArtifactFile(".migrations.json"))
	assert.False(t, IsArtifactFile(".chainId"))
	assert.False(t, IsArtifactFile("Token.json.bak"))
}

func TestParse(t *testing.T) {
	dir := t.TempDir()

	t.Run("full artifact", func(t *testing.T) {
		path := filepath.Join(dir, "TokenA.json")
		writeJSON(t, path, map[string]any{
			"address":       "0x0000000000000000000000000000000000000001",
			"args":          []any{"1000", true},
			"solcInputHash": "abc",
			"metadata":      `{"compiler":{"version":"0.8.17+commit.8df45f5f"},"settings":{"compilationTarget":{"contracts/TokenA.sol":"TokenA"}}}`,
		})

		a, err := Parse(path)
		require.NoError(t, err)
		assert.Equal(t, "TokenA.json", a.File)
		assert.Equal(t, "TokenA", a.Name())
		assert.False(t, a.IsKnownProxy())
		require.Len(t, a.ConstructorArguments(), 2)
		assert.JSONEq(t, `"1000"`, string(a.ConstructorArguments()[0]))

		id, err := a.ContractIdentifier()
		require.NoError(t, err)
		assert.Equal(t, "contracts/TokenA.sol:TokenA", id)

		m, err := a.ParseMetadata()
		require.NoError(t, err)
		assert.Equal(t, "0.8.17+commit.8df45f5f", m.Compiler.Version)
	})

	t.Run("proxy notice", func(t *testing.T) {
		path := filepath.Join(dir, "ProxyB.json")
		writeJSON(t, path, map[string]any{
			"userdoc": map[string]any{"notice": ProxyNotice},
		})

		a, err := Parse(path)
		require.NoError(t, err)
		assert.True(t, a.IsKnownProxy())
		assert.Empty(t, a.Address)
		assert.NotNil(t, a.ConstructorArguments())
		assert.Empty(t, a.ConstructorArguments())
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(dir, "Broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		_, err := Parse(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing artifact JSON")
	})
}

func TestContractIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		want     string
		wantErr  error
	}{
		{
			name:    "no metadata",
			wantErr: ErrNoMetadata,
		},
		{
			name:     "two targets",
			metadata: `{"settings":{"compilationTarget":{"a.sol":"A","b.sol":"B"}}}`,
			wantErr:  ErrCompilationTarget,
		},
		{
			name:     "no targets",
			metadata: `{"settings":{}}`,
			wantErr:  ErrCompilationTarget,
		},
		{
			name:     "single target",
			metadata: `{"settings":{"compilationTarget":{"contracts/bond/Bond.sol":"Bond"}}}`,
			want:     "contracts/bond/Bond.sol:Bond",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Artifact{Metadata: tt.metadata}
			got, err := a.ContractIdentifier()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadSolcInput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "solcInputs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "solcInputs", "abc.json"), []byte(`{"language":"Solidity"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "solcInputs", "bad.json"), []byte(`{`), 0644))

	input, err := LoadSolcInput(dir, "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"language":"Solidity"}`, string(input))

	_, err = LoadSolcInput(dir, "")
	assert.Error(t, err)

	_, err = LoadSolcInput(dir, "missing")
	assert.Error(t, err)

	_, err = LoadSolcInput(dir, "bad")
	assert.Error(t, err)
}
