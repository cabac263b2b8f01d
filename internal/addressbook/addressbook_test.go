package addressbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
defaultMtFeeRateModel:
  bsc: "0x18DFdE99F578A0735410797e949E8D3e2AFCB9D2"
  bsctest: "0x0aFDEDe9F2a9E3f79f2aa1B5F55c567AD5d3A211"
  hardhat: null
weth:
  bsc: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"
  bsctest: "0xA314A75563cCE9AeF91d132C72737aCf301E0735"
  hardhat: null
`

func TestLookup(t *testing.T) {
	book, err := Parse([]byte(sample))
	require.NoError(t, err)

	addr, err := book.Lookup("weth", "bsc")
	require.NoError(t, err)
	assert.Equal(t, "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", addr)

	_, err = book.Lookup("weth", "hardhat")
	assert.ErrorIs(t, err, ErrNotDeployed)

	_, err = book.Lookup("weth", "arbitrum")
	assert.ErrorIs(t, err, ErrNotDeployed)

	_, err = book.Lookup("dodoApproveProxy", "bsc")
	assert.ErrorIs(t, err, ErrUnknownName)
}

func TestNamesAndNetworks(t *testing.T) {
	book, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, []string{"defaultMtFeeRateModel", "weth"}, book.Names())

	networks, err := book.Networks("weth")
	require.NoError(t, err)
	assert.Equal(t, []string{"bsc", "bsctest", "hardhat"}, networks)

	entries, err := book.Entries("weth")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Nil(t, entries[2].Address)
}

func TestForNetwork(t *testing.T) {
	book, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Len(t, book.ForNetwork("bsc"), 2)
	assert.Empty(t, book.ForNetwork("hardhat"))
}

func TestValidate(t *testing.T) {
	book, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.NoError(t, book.Validate())

	bad, err := Parse([]byte(`
weth:
  bsc: "0xbB4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"
  bsctest: "0x1234"
`))
	require.NoError(t, err)
	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
	assert.Contains(t, err.Error(), "weth.bsctest")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "addresses.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	book, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, book.Names(), 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("weth: [1, 2"))
	assert.Error(t, err)
}
