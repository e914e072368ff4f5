// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authset

import "fmt"

// Set is an ordered authorization set. Order is significant: repeated
// kinds are reported in insertion order and the fingerprint covers
// the sequence as given.
type Set []Tag

// Find returns the index of the first tag of kind at or after start,
// or -1 if there is none.
func (s Set) Find(kind Kind, start int) int {
	if start < 0 {
		start = 0
	}
	for index := start; index < len(s); index++ {
		if s[index].Kind == kind {
			return index
		}
	}
	return -1
}

// Contains reports whether any tag of kind is present.
func (s Set) Contains(kind Kind) bool {
	return s.Find(kind, 0) >= 0
}

// All returns every tag of kind in insertion order.
func (s Set) All(kind Kind) []Tag {
	var matches []Tag
	for index := s.Find(kind, 0); index >= 0; index = s.Find(kind, index+1) {
		matches = append(matches, s[index])
	}
	return matches
}

// ContainsValue reports whether a tag of kind with the given integer
// value is present. This is how capability lists such as RESCOPING_ADD
// are queried.
func (s Set) ContainsValue(kind Kind, value uint64) bool {
	for index := s.Find(kind, 0); index >= 0; index = s.Find(kind, index+1) {
		if s[index].Integer == value {
			return true
		}
	}
	return false
}

// ContainsEqual reports whether the set holds a tag Equal to tag.
func (s Set) ContainsEqual(tag Tag) bool {
	for index := s.Find(tag.Kind, 0); index >= 0; index = s.Find(tag.Kind, index+1) {
		if Equal(s[index], tag) {
			return true
		}
	}
	return false
}

// Validate checks every tag for a known kind and a value that matches
// the kind's category, and rejects a second tag of a non-repeatable
// kind.
func (s Set) Validate() error {
	seen := make(map[Kind]int, len(s))
	for index, tag := range s {
		if err := tag.validate(); err != nil {
			return fmt.Errorf("tag %d: %w", index, err)
		}
		if first, ok := seen[tag.Kind]; ok && !tag.Kind.Repeatable() {
			return fmt.Errorf("tag %d: %s already set at tag %d and is not repeatable", index, tag.Kind, first)
		}
		if _, ok := seen[tag.Kind]; !ok {
			seen[tag.Kind] = index
		}
	}
	return nil
}
