// Package contracts holds the ABIs of the on-chain collaborators and typed call helpers
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const directoryJSON = `[
	{"type":"function","name":"lookup","stateMutability":"view",
	 "inputs":[{"name":"emailHash","type":"bytes32"}],
	 "outputs":[{"name":"","type":"address"}]}
]`

const factoryJSON = `[
	{"type":"function","name":"predict","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"salt","type":"uint256"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"create","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"requireProof","type":"bool"},
		{"name":"emailHash","type":"bytes32"},
		{"name":"domainHash","type":"bytes32"},
		{"name":"salt","type":"uint256"},
		{"name":"email","type":"string"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"accountsOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"address[]"}]},
	{"type":"event","name":"AccountCreated","anonymous":false,
	 "inputs":[
		{"name":"owner","type":"address","indexed":true},
		{"name":"account","type":"address","indexed":true},
		{"name":"salt","type":"uint256","indexed":false}]}
]`

const accountJSON = `[
	{"type":"function","name":"execute","stateMutability":"payable",
	 "inputs":[
		{"name":"proof","type":"tuple","components":[
			{"name":"a","type":"uint256[2]"},
			{"name":"b","type":"uint256[2][2]"},
			{"name":"c","type":"uint256[2]"},
			{"name":"publicSignals","type":"uint256[3]"}]},
		{"name":"target","type":"address"},
		{"name":"value","type":"uint256"},
		{"name":"data","type":"bytes"}],
	 "outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"requiresProof","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"emailHash","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"domainHash","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"nonce","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const erc20JSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

var (
	// DirectoryABI email hash to account directory
	DirectoryABI = mustParse(directoryJSON)
	// FactoryABI deterministic ZK Account factory
	FactoryABI = mustParse(factoryJSON)
	// AccountABI ZK Account
	AccountABI = mustParse(accountJSON)
	// ERC20ABI subset of the token standard used for balances and transfers
	ERC20ABI = mustParse(erc20JSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
