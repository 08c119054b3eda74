package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract ABIs of the prediction-market contract suite. Only the entry
// points and events the market operations touch are declared.
var (
	EtherTokenABI               abi.ABI
	CentralizedOracleFactoryABI abi.ABI
	UltimateOracleFactoryABI    abi.ABI
	EventFactoryABI             abi.ABI
	StandardMarketFactoryABI    abi.ABI
	MarketABI                   abi.ABI
	EventABI                    abi.ABI
)

func init() {
	EtherTokenABI = mustParseABI("ether token", `[
		{"name": "deposit", "type": "function", "stateMutability": "payable", "inputs": [], "outputs": []},
		{"name": "approve", "type": "function", "inputs": [
			{"name": "spender", "type": "address"},
			{"name": "value", "type": "uint256"}
		], "outputs": [{"name": "", "type": "bool"}]},
		{"name": "balanceOf", "type": "function", "stateMutability": "view", "inputs": [
			{"name": "owner", "type": "address"}
		], "outputs": [{"name": "", "type": "uint256"}]}
	]`)

	CentralizedOracleFactoryABI = mustParseABI("centralized oracle factory", `[
		{"name": "createCentralizedOracle", "type": "function", "inputs": [
			{"name": "ipfsHash", "type": "bytes"}
		], "outputs": [{"name": "centralizedOracle", "type": "address"}]},
		{"name": "CentralizedOracleCreation", "type": "event", "inputs": [
			{"name": "creator", "type": "address", "indexed": true},
			{"name": "centralizedOracle", "type": "address", "indexed": false},
			{"name": "ipfsHash", "type": "bytes", "indexed": false}
		]}
	]`)

	UltimateOracleFactoryABI = mustParseABI("ultimate oracle factory", `[
		{"name": "createUltimateOracle", "type": "function", "inputs": [
			{"name": "forwardedOracle", "type": "address"},
			{"name": "collateralToken", "type": "address"},
			{"name": "spreadMultiplier", "type": "uint8"},
			{"name": "challengePeriod", "type": "uint256"},
			{"name": "challengeAmount", "type": "uint256"},
			{"name": "frontRunnerPeriod", "type": "uint256"}
		], "outputs": [{"name": "ultimateOracle", "type": "address"}]},
		{"name": "UltimateOracleCreation", "type": "event", "inputs": [
			{"name": "creator", "type": "address", "indexed": true},
			{"name": "ultimateOracle", "type": "address", "indexed": false},
			{"name": "oracle", "type": "address", "indexed": false},
			{"name": "collateralToken", "type": "address", "indexed": false},
			{"name": "spreadMultiplier", "type": "uint8", "indexed": false},
			{"name": "challengePeriod", "type": "uint256", "indexed": false},
			{"name": "challengeAmount", "type": "uint256", "indexed": false},
			{"name": "frontRunnerPeriod", "type": "uint256", "indexed": false}
		]}
	]`)

	EventFactoryABI = mustParseABI("event factory", `[
		{"name": "createCategoricalEvent", "type": "function", "inputs": [
			{"name": "collateralToken", "type": "address"},
			{"name": "oracle", "type": "address"},
			{"name": "outcomeCount", "type": "uint8"}
		], "outputs": [{"name": "eventContract", "type": "address"}]},
		{"name": "createScalarEvent", "type": "function", "inputs": [
			{"name": "collateralToken", "type": "address"},
			{"name": "oracle", "type": "address"},
			{"name": "lowerBound", "type": "int256"},
			{"name": "upperBound", "type": "int256"}
		], "outputs": [{"name": "eventContract", "type": "address"}]},
		{"name": "CategoricalEventCreation", "type": "event", "inputs": [
			{"name": "creator", "type": "address", "indexed": true},
			{"name": "categoricalEvent", "type": "address", "indexed": false},
			{"name": "collateralToken", "type": "address", "indexed": false},
			{"name": "oracle", "type": "address", "indexed": false},
			{"name": "outcomeCount", "type": "uint8", "indexed": false}
		]},
		{"name": "ScalarEventCreation", "type": "event", "inputs": [
			{"name": "creator", "type": "address", "indexed": true},
			{"name": "scalarEvent", "type": "address", "indexed": false},
			{"name": "collateralToken", "type": "address", "indexed": false},
			{"name": "oracle", "type": "address", "indexed": false},
			{"name": "lowerBound", "type": "int256", "indexed": false},
			{"name": "upperBound", "type": "int256", "indexed": false}
		]}
	]`)

	StandardMarketFactoryABI = mustParseABI("standard market factory", `[
		{"name": "createMarket", "type": "function", "inputs": [
			{"name": "eventContract", "type": "address"},
			{"name": "marketMaker", "type": "address"},
			{"name": "fee", "type": "uint24"}
		], "outputs": [{"name": "market", "type": "address"}]},
		{"name": "StandardMarketCreation", "type": "event", "inputs": [
			{"name": "creator", "type": "address", "indexed": true},
			{"name": "market", "type": "address", "indexed": false},
			{"name": "eventContract", "type": "address", "indexed": false},
			{"name": "marketMaker", "type": "address", "indexed": false},
			{"name": "fee", "type": "uint24", "indexed": false}
		]}
	]`)

	MarketABI = mustParseABI("market", `[
		{"name": "fund", "type": "function", "inputs": [
			{"name": "_funding", "type": "uint256"}
		], "outputs": []},
		{"name": "buy", "type": "function", "inputs": [
			{"name": "outcomeTokenIndex", "type": "uint8"},
			{"name": "outcomeTokenCount", "type": "uint256"},
			{"name": "maxCost", "type": "uint256"}
		], "outputs": [{"name": "cost", "type": "uint256"}]},
		{"name": "funding", "type": "function", "stateMutability": "view", "inputs": [],
			"outputs": [{"name": "", "type": "uint256"}]},
		{"name": "eventContract", "type": "function", "stateMutability": "view", "inputs": [],
			"outputs": [{"name": "", "type": "address"}]},
		{"name": "netOutcomeTokensSold", "type": "function", "stateMutability": "view", "inputs": [
			{"name": "", "type": "uint256"}
		], "outputs": [{"name": "", "type": "int256"}]},
		{"name": "OutcomeTokenPurchase", "type": "event", "inputs": [
			{"name": "buyer", "type": "address", "indexed": true},
			{"name": "outcomeTokenIndex", "type": "uint8", "indexed": false},
			{"name": "outcomeTokenCount", "type": "uint256", "indexed": false},
			{"name": "outcomeTokenCost", "type": "uint256", "indexed": false},
			{"name": "marketFee", "type": "uint256", "indexed": false}
		]}
	]`)

	EventABI = mustParseABI("event", `[
		{"name": "getOutcomeCount", "type": "function", "stateMutability": "view", "inputs": [],
			"outputs": [{"name": "", "type": "uint8"}]}
	]`)
}

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(name + " abi parse: " + err.Error())
	}
	return parsed
}
