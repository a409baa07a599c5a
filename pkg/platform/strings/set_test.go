package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type identity string

func TestOrderedSet(t *testing.T) {
	tests := []struct {
		name     string
		input    []identity
		limit    int
		expected []identity
		ok       bool
	}{
		{name: "nil input gives empty set", input: nil, expected: []identity{}, ok: true},
		{name: "trims and drops blanks", input: []identity{" dealer ", "", "  "}, expected: []identity{"dealer"}, ok: true},
		{name: "first occurrence wins", input: []identity{"b", "a", "b", " a"}, expected: []identity{"b", "a"}, ok: true},
		{name: "duplicates do not count toward the limit", input: []identity{"a", "a", "a", "b"}, limit: 2, expected: []identity{"a", "b"}, ok: true},
		{name: "exactly at the limit", input: []identity{"a", "b", "c"}, limit: 3, expected: []identity{"a", "b", "c"}, ok: true},
		{name: "over the limit", input: []identity{"a", "b", "c"}, limit: 2, ok: false},
		{name: "case is significant", input: []identity{"Dealer", "dealer"}, expected: []identity{"Dealer", "dealer"}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := OrderedSet(tt.input, tt.limit)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestContains(t *testing.T) {
	set := []identity{"dealer-a", "dealer-b"}
	assert.True(t, Contains(set, "dealer-b"))
	assert.False(t, Contains(set, "dealer-c"))
	assert.False(t, Contains(set, "Dealer-a"))
	assert.False(t, Contains[identity](nil, "dealer-a"))
}
