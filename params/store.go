// Package params loads and resolves the nested patient parameter document
// that configures the physiological model. A document is a two-level JSON
// object mapping category names to parameter names to entries. Entries carry
// a value (a number, a numeric vector, or an arithmetic expression string)
// and optional physiological bounds.
package params

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// maxResolvePasses bounds the iterative expression-resolution loop.
const maxResolvePasses = 10

// A ConfigurationError reports a missing or malformed parameter document.
// It is fatal at startup.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("params: %s: %v", e.Reason, e.Err)
	}
	return "params: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// An UnresolvedDependencyError reports expression-valued parameters that
// still reference unknown names after the resolution pass bound is reached.
// It is fatal at startup.
type UnresolvedDependencyError struct {
	Keys []string
}

func (e *UnresolvedDependencyError) Error() string {
	return "params: unresolved parameter dependencies: " +
		strings.Join(e.Keys, ", ")
}

// An UnknownParameterError reports a dotted path that does not exist in the
// store. Callers treat it as a warning and drop the offending change.
type UnknownParameterError struct {
	Path string
}

func (e *UnknownParameterError) Error() string {
	return "params: unknown parameter " + e.Path
}

// Entry is a single scalar parameter with optional bounds.
type Entry struct {
	Value float64
	Min   float64
	Max   float64

	HasMin bool
	HasMax bool

	expr string
}

// Store holds the flattened parameter document, keyed by dotted category
// paths such as "cardio_control_params.HR_n".
type Store struct {
	entries map[string]*Entry
	vectors map[string][]float64
}

// rawEntry mirrors the on-disk entry shape. Value may be a JSON number, a
// string expression, or an array of numbers.
type rawEntry struct {
	Value json.RawMessage `json:"value"`
	Min   *float64        `json:"min"`
	Max   *float64        `json:"max"`
}

// Load reads a parameter document from r.
func Load(r io.Reader) (*Store, error) {
	var doc map[string]map[string]rawEntry
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, &ConfigurationError{Reason: "malformed document", Err: err}
	}

	s := &Store{
		entries: make(map[string]*Entry),
		vectors: make(map[string][]float64),
	}

	for category, names := range doc {
		for name, raw := range names {
			key := category + "." + name
			if err := s.addEntry(key, raw); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

// LoadFile reads a parameter document from the file at path.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{
			Reason: "parameter file " + path + " not found",
			Err:    err,
		}
	}
	defer f.Close()

	return Load(f)
}

func (s *Store) addEntry(key string, raw rawEntry) error {
	if len(raw.Value) == 0 {
		return &ConfigurationError{Reason: "entry " + key + " has no value"}
	}

	var num float64
	if err := json.Unmarshal(raw.Value, &num); err == nil {
		e := &Entry{Value: num}
		applyBounds(e, raw)
		s.entries[key] = e
		return nil
	}

	var str string
	if err := json.Unmarshal(raw.Value, &str); err == nil {
		e := &Entry{expr: str}
		applyBounds(e, raw)
		s.entries[key] = e
		return nil
	}

	var vec []float64
	if err := json.Unmarshal(raw.Value, &vec); err == nil {
		s.vectors[key] = vec
		return nil
	}

	return &ConfigurationError{Reason: "entry " + key + " has unsupported value type"}
}

func applyBounds(e *Entry, raw rawEntry) {
	if raw.Min != nil {
		e.Min = *raw.Min
		e.HasMin = true
	}
	if raw.Max != nil {
		e.Max = *raw.Max
		e.HasMax = true
	}
}

// Get returns the scalar value stored at the dotted key.
func (s *Store) Get(key string) (float64, error) {
	e, ok := s.entries[key]
	if !ok {
		return 0, &UnknownParameterError{Path: key}
	}
	if e.expr != "" {
		return 0, fmt.Errorf("params: parameter %s is unresolved", key)
	}
	return e.Value, nil
}

// MustGet returns the scalar value at key and panics if it is absent. It is
// intended for keys whose presence is guaranteed after derivation.
func (s *Store) MustGet(key string) float64 {
	v, err := s.Get(key)
	if err != nil {
		panic(err)
	}
	return v
}

// GetDefault returns the value at key, or def if the key is absent.
func (s *Store) GetDefault(key string, def float64) float64 {
	v, err := s.Get(key)
	if err != nil {
		return def
	}
	return v
}

// Vector returns the numeric vector stored at the dotted key.
func (s *Store) Vector(key string) ([]float64, error) {
	v, ok := s.vectors[key]
	if !ok {
		return nil, &UnknownParameterError{Path: key}
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out, nil
}

// MustVector returns the vector at key and panics if it is absent.
func (s *Store) MustVector(key string) []float64 {
	v, err := s.Vector(key)
	if err != nil {
		panic(err)
	}
	return v
}

// Has reports whether key names a scalar parameter in the store.
func (s *Store) Has(key string) bool {
	_, ok := s.entries[key]
	return ok
}

// Keys returns all scalar keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entry returns a copy of the entry at key.
func (s *Store) Entry(key string) (Entry, error) {
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, &UnknownParameterError{Path: key}
	}
	return *e, nil
}

// ApplyByPath sets the scalar at the dotted path, clamping into the entry's
// bounds when bounds are present. Unknown paths return an
// UnknownParameterError and leave the store untouched.
func (s *Store) ApplyByPath(path string, value float64) error {
	e, ok := s.entries[path]
	if !ok {
		return &UnknownParameterError{Path: path}
	}

	if e.HasMin && value < e.Min {
		value = e.Min
	}
	if e.HasMax && value > e.Max {
		value = e.Max
	}

	e.Value = value
	e.expr = ""

	return nil
}

// ResolveExpressions evaluates every expression-valued entry, using already
// resolved entries as the evaluation context. Resolution iterates until a
// full pass makes no progress; entries still unresolved at that point (or
// after maxResolvePasses passes) produce an UnresolvedDependencyError.
// Running it on a fully resolved store is a no-op.
func (s *Store) ResolveExpressions() error {
	pending := make([]string, 0)
	for k, e := range s.entries {
		if e.expr != "" {
			pending = append(pending, k)
		}
	}
	sort.Strings(pending)

	lookup := s.lookupFunc()

	for pass := 0; pass < maxResolvePasses && len(pending) > 0; pass++ {
		progress := false
		remaining := pending[:0]

		for _, key := range pending {
			e := s.entries[key]
			v, err := Eval(e.expr, lookup)
			if err != nil {
				remaining = append(remaining, key)
				continue
			}
			e.Value = v
			e.expr = ""
			progress = true
		}

		pending = remaining
		if !progress {
			break
		}
	}

	if len(pending) > 0 {
		sort.Strings(pending)
		return &UnresolvedDependencyError{Keys: pending}
	}

	return nil
}

// lookupFunc builds the name-resolution context for expression evaluation.
// Names resolve by full dotted key first, then by bare parameter name when
// that bare name is unambiguous across categories.
func (s *Store) lookupFunc() func(string) (float64, bool) {
	bare := make(map[string]string)
	ambiguous := make(map[string]bool)
	for k := range s.entries {
		name := k[strings.LastIndexByte(k, '.')+1:]
		if prev, ok := bare[name]; ok && prev != k {
			ambiguous[name] = true
			continue
		}
		bare[name] = k
	}

	return func(name string) (float64, bool) {
		if e, ok := s.entries[name]; ok && e.expr == "" {
			return e.Value, true
		}
		if ambiguous[name] {
			return 0, false
		}
		if full, ok := bare[name]; ok {
			if e := s.entries[full]; e.expr == "" {
				return e.Value, true
			}
		}
		return 0, false
	}
}

// set inserts or overwrites a scalar entry, used by the derivation pass.
func (s *Store) set(key string, value float64) {
	if e, ok := s.entries[key]; ok {
		e.Value = value
		e.expr = ""
		return
	}
	s.entries[key] = &Entry{Value: value}
}
