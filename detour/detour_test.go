package detour

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

type adder func(a, b int) int

func TestTable(t *testing.T) {
	table := NewTable(log.NewTestLogger(t))
	table.Register(0x1000, adder(func(a, b int) int { return a + b }))

	fn, err := Resolve[adder](table, 0x1000)
	assert.NoError(t, err)
	assert.Equal(t, 3, fn(1, 2))

	original, err := Install(table, "Add", 0x1000, adder(func(a, b int) int { return a * b }))
	assert.NoError(t, err)
	assert.Equal(t, 5, original(2, 3))

	fn, err = Resolve[adder](table, 0x1000)
	assert.NoError(t, err)
	assert.Equal(t, 6, fn(2, 3))

	_, err = Install(table, "Add", 0x1000, adder(func(a, b int) int { return 0 }))
	assert.True(t, errors.Is(err, ErrAlreadyInstalled))

	assert.NoError(t, table.Remove(0x1000))
	fn, err = Resolve[adder](table, 0x1000)
	assert.NoError(t, err)
	assert.Equal(t, 5, fn(2, 3))
}

func TestTable_Errors(t *testing.T) {
	table := NewTable(log.NewTestLogger(t))

	_, err := Install(table, "Missing", 0x2000, adder(nil))
	assert.True(t, errors.Is(err, ErrUnknownTarget))
	assert.True(t, errors.Is(table.Remove(0x2000), ErrUnknownTarget))
	_, err = table.Resolve(0x2000)
	assert.True(t, errors.Is(err, ErrUnknownTarget))

	// a replacement of a different type is rolled back
	table.Register(0x3000, func() {})
	_, err = Install(table, "Mismatch", 0x3000, adder(func(a, b int) int { return 0 }))
	assert.Error(t, err)
	_, err = Resolve[func()](table, 0x3000)
	assert.NoError(t, err)

	_, err = Resolve[adder](table, 0x3000)
	assert.Error(t, err)
}
