// Package vocab implements named vector vocabularies for decoding
// simulation output into symbolic similarity matches.
//
// A Vocabulary is a fixed-dimension vector space with a finite, ordered set
// of named basis vectors. Similarity against the basis is a plain inner
// product; callers decide which matches are worth reporting. Iteration order
// is always definition order, never similarity order.
package vocab

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Sentinel errors for vocabulary operations.
var (
	// ErrDimensionMismatch is returned when a vector's length does not match
	// the vocabulary's dimensionality.
	ErrDimensionMismatch = errors.New("vocab: dimension mismatch")

	// ErrDuplicateKey is returned when a key is added twice.
	ErrDuplicateKey = errors.New("vocab: duplicate key")

	// ErrUnknownKey is returned when an expression references a key that has
	// not been added to the vocabulary.
	ErrUnknownKey = errors.New("vocab: unknown key")
)

// Match pairs a vocabulary key with its inner-product similarity.
type Match struct {
	Key        string
	Similarity float64
}

// Vocabulary is an ordered set of named basis vectors in a fixed-dimension
// space. Definition order is preserved: Keys, Similarity and every other
// iterating method walk the basis in the order keys were added.
//
// A Vocabulary is safe for concurrent readers once populated. Add is guarded
// so population from multiple goroutines is also safe, though the usual
// pattern is build once, read many.
type Vocabulary struct {
	dims int

	mu      sync.RWMutex
	keys    []string
	vectors map[string][]float64
}

// New creates an empty Vocabulary with the given dimensionality.
func New(dims int) *Vocabulary {
	return &Vocabulary{
		dims:    dims,
		vectors: make(map[string][]float64),
	}
}

// Dimensions returns the vocabulary's dimensionality.
func (v *Vocabulary) Dimensions() int {
	return v.dims
}

// Add registers a named basis vector. The vector is copied, so the caller
// may reuse its slice.
func (v *Vocabulary) Add(key string, vec []float64) error {
	if len(vec) != v.dims {
		return fmt.Errorf("%w: key %q has %d dims, want %d", ErrDimensionMismatch, key, len(vec), v.dims)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.vectors[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}

	cp := make([]float64, len(vec))
	copy(cp, vec)
	v.keys = append(v.keys, key)
	v.vectors[key] = cp
	return nil
}

// Keys returns the vocabulary keys in definition order.
func (v *Vocabulary) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Vector returns the basis vector for key, or false if the key is unknown.
// The returned slice is a copy.
func (v *Vocabulary) Vector(key string) ([]float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	vec, ok := v.vectors[key]
	if !ok {
		return nil, false
	}
	cp := make([]float64, len(vec))
	copy(cp, vec)
	return cp, true
}

// Zero returns the zero vector of the vocabulary's dimensionality.
func (v *Vocabulary) Zero() []float64 {
	return make([]float64, v.dims)
}

// Parse evaluates a symbolic expression into a vector.
//
// Supported forms:
//
//	"0"              the zero vector (the neutral symbol)
//	"A"              the basis vector for key A
//	"0.5*A + 0.5*B"  a scaled sum of basis vectors
//
// Whitespace around terms and operators is ignored.
func (v *Vocabulary) Parse(expr string) ([]float64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "0" {
		return v.Zero(), nil
	}

	out := v.Zero()
	for _, term := range strings.Split(expr, "+") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}

		scale := 1.0
		key := term
		if i := strings.Index(term, "*"); i >= 0 {
			s, err := strconv.ParseFloat(strings.TrimSpace(term[:i]), 64)
			if err != nil {
				return nil, fmt.Errorf("vocab: bad scale in term %q: %w", term, err)
			}
			scale = s
			key = strings.TrimSpace(term[i+1:])
		}

		v.mu.RLock()
		vec, ok := v.vectors[key]
		v.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
		for i, x := range vec {
			out[i] += scale * x
		}
	}
	return out, nil
}

// Similarity computes the inner product of x against every basis vector, in
// definition order. It returns one Match per key, unfiltered; thresholding
// is the caller's policy.
func (v *Vocabulary) Similarity(x []float64) ([]Match, error) {
	if len(x) != v.dims {
		return nil, fmt.Errorf("%w: probe has %d dims, want %d", ErrDimensionMismatch, len(x), v.dims)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	matches := make([]Match, 0, len(v.keys))
	for _, key := range v.keys {
		vec := v.vectors[key]
		var dot float64
		for i, xi := range x {
			dot += xi * vec[i]
		}
		matches = append(matches, Match{Key: key, Similarity: dot})
	}
	return matches, nil
}
