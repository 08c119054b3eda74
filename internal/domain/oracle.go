package domain

import (
	"fmt"
	"strings"
)

// OracleKind selects which oracle factory creates the oracle.
type OracleKind string

const (
	OracleCentralized OracleKind = "CENTRALIZED"
	OracleUltimate    OracleKind = "ULTIMATE"
)

// ParseOracleKind maps a raw kind string onto the closed set of oracle
// kinds. Matching is case-insensitive.
func ParseOracleKind(s string) (OracleKind, error) {
	switch OracleKind(strings.ToUpper(strings.TrimSpace(s))) {
	case OracleCentralized:
		return OracleCentralized, nil
	case OracleUltimate:
		return OracleUltimate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOracleKind, s)
	}
}

// UltimateOracleParams are the constructor arguments of an ultimate oracle.
// The collateral token is always the managed wrapped token.
type UltimateOracleParams struct {
	ForwardedOracle   string `json:"forwardedOracle"`
	SpreadMultiplier  uint8  `json:"spreadMultiplier"`
	ChallengePeriod   uint64 `json:"challengePeriod"`
	ChallengeAmount   string `json:"challengeAmount"`
	FrontRunnerPeriod uint64 `json:"frontRunnerPeriod"`
}

// Oracle is the entity that eventually reports an event's outcome.
type Oracle struct {
	Kind OracleKind `json:"kind"`

	// ContentHash binds a centralized oracle to a published description.
	ContentHash string `json:"contentHash,omitempty"`

	Ultimate *UltimateOracleParams `json:"ultimate,omitempty"`

	Address string `json:"address,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
}

// Validate resolves the kind and checks that its parameters are present.
// An unknown kind fails with ErrInvalidOracleKind.
func (o *Oracle) Validate() error {
	kind, err := ParseOracleKind(string(o.Kind))
	if err != nil {
		return err
	}
	o.Kind = kind

	switch kind {
	case OracleCentralized:
		if o.ContentHash == "" {
			return fmt.Errorf("%w: centralized oracle needs a published description hash", ErrInvalidRecord)
		}
	case OracleUltimate:
		if o.Ultimate == nil {
			return fmt.Errorf("%w: ultimate oracle parameters are required", ErrInvalidRecord)
		}
		if o.Ultimate.ForwardedOracle == "" {
			return fmt.Errorf("%w: ultimate oracle needs a forwarded oracle", ErrInvalidRecord)
		}
		if o.Ultimate.SpreadMultiplier == 0 {
			return fmt.Errorf("%w: ultimate oracle spread multiplier must be > 0", ErrInvalidRecord)
		}
	}
	return nil
}
