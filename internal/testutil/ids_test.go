package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIDs_Generate(t *testing.T) {
	gen := NewSequenceIDs("debt")

	assert.Equal(t, "debt-0001", gen.Generate())
	assert.Equal(t, "debt-0002", gen.Generate())

	gen.Reset()
	assert.Equal(t, "debt-0001", gen.Generate())
}

func TestSequenceIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "id-0001", NewSequenceIDs("").Generate())
}
