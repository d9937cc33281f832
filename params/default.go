package params

import (
	"bytes"
	_ "embed"
)

//go:embed adult.json
var adultDocument []byte

// DefaultAdult returns a fully resolved and derived store for the built-in
// healthy adult parameter set.
func DefaultAdult() (*Store, error) {
	s, err := Load(bytes.NewReader(adultDocument))
	if err != nil {
		return nil, err
	}
	if err := s.ResolveExpressions(); err != nil {
		return nil, err
	}
	if err := s.ComputeDerived(); err != nil {
		return nil, err
	}
	return s, nil
}
