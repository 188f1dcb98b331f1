package opcodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpcode_WireValues(t *testing.T) {
	assert.Equal(t, Opcode(0), Dispatch)
	assert.Equal(t, Opcode(2), Identify)
	assert.Equal(t, Opcode(6), Resume)
	assert.Equal(t, Opcode(10), Hello)
	assert.Equal(t, Opcode(11), HeartbeatACK)
}

func TestOpcode_KnownAndString(t *testing.T) {
	assert.True(t, Hello.Known())
	assert.Equal(t, "Hello", Hello.String())

	assert.False(t, Opcode(5).Known())
	assert.False(t, Opcode(42).Known())
	assert.Equal(t, "Opcode(42)", Opcode(42).String())
}
