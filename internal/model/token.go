package model

import (
	"fmt"
	"strings"
)

// TokenType identifies one of the tracked faucet tokens.
type TokenType string

const (
	// TokenVEX is the primary utility token and the faucet grant asset.
	TokenVEX TokenType = "vex"
	// TokenSVEX is the staked form of VEX.
	TokenSVEX TokenType = "svex"
	// TokenGVEX is the governance token.
	TokenGVEX TokenType = "gvex"
)

// PrimaryToken is the fallback when a contract address is not in the registry.
const PrimaryToken = TokenVEX

// ParseTokenType validates a token type string.
func ParseTokenType(input string) (TokenType, error) {
	switch TokenType(strings.ToLower(strings.TrimSpace(input))) {
	case TokenVEX:
		return TokenVEX, nil
	case TokenSVEX:
		return TokenSVEX, nil
	case TokenGVEX:
		return TokenGVEX, nil
	default:
		return "", fmt.Errorf("unknown token type: %s", input)
	}
}

// TokenRegistry maps contract addresses (lowercase hex) to token types.
// It replaces symbol substring matching with an explicit table resolved
// once from configuration.
type TokenRegistry struct {
	byContract map[string]TokenType
}

// NewTokenRegistry builds a registry from a contract->type mapping.
func NewTokenRegistry(entries map[string]string) (*TokenRegistry, error) {
	byContract := make(map[string]TokenType, len(entries))
	for contract, typeName := range entries {
		contract = strings.ToLower(strings.TrimSpace(contract))
		if contract == "" {
			continue
		}
		tokenType, err := ParseTokenType(typeName)
		if err != nil {
			return nil, fmt.Errorf("token registry entry %s: %w", contract, err)
		}
		byContract[contract] = tokenType
	}
	return &TokenRegistry{byContract: byContract}, nil
}

// Resolve returns the token type for a contract address, falling back to
// the primary token for unregistered contracts.
func (r *TokenRegistry) Resolve(contract string) TokenType {
	if r == nil {
		return PrimaryToken
	}
	if tokenType, ok := r.byContract[strings.ToLower(strings.TrimSpace(contract))]; ok {
		return tokenType
	}
	return PrimaryToken
}

// Contracts returns the registered contract addresses.
func (r *TokenRegistry) Contracts() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.byContract))
	for contract := range r.byContract {
		out = append(out, contract)
	}
	return out
}
