package names

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrohook/internal/mocks"
	"github.com/retroenv/retrohook/layout"
	"github.com/retroenv/retrohook/memory"
)

func TestTable_Entry(t *testing.T) {
	for _, l := range []*layout.Layout{layout.UE3Layout(), layout.UE4Layout()} {
		e := mocks.NewEngine(l)
		ansi := e.Name("PlayerController")
		wide := e.WideName("Wïde")

		table := NewTable(e.Arena, l, e.Names)

		s, err := table.Entry(0)
		assert.NoError(t, err)
		assert.Equal(t, "None", s)

		s, err = table.Entry(ansi)
		assert.NoError(t, err)
		assert.Equal(t, "PlayerController", s)

		s, err = table.Entry(wide)
		assert.NoError(t, err)
		assert.Equal(t, "Wïde", s)

		_, err = table.Entry(100)
		assert.True(t, errors.Is(err, ErrInvalidEntry))
	}
}

func TestTable_String(t *testing.T) {
	e := mocks.NewEngine(layout.UE3Layout())
	index := e.Name("Actor")
	table := NewTable(e.Arena, e.Layout, e.Names)

	s, err := table.String(Name{Index: index})
	assert.NoError(t, err)
	assert.Equal(t, "Actor", s)

	s, err = table.String(Name{Index: index, Number: 3})
	assert.NoError(t, err)
	assert.Equal(t, "Actor_2", s)
}

func TestTable_Find(t *testing.T) {
	e := mocks.NewEngine(layout.UE4Layout())
	table := NewTable(e.Arena, e.Layout, e.Names)

	_, err := table.Find("Health")
	assert.True(t, errors.Is(err, ErrNameNotFound))

	// entries added after the table was first scanned are found as well
	index := e.Name("Health")
	n, err := table.Find("health")
	assert.NoError(t, err)
	assert.Equal(t, Name{Index: index}, n)

	n, err = table.Find("HEALTH")
	assert.NoError(t, err)
	assert.Equal(t, index, n.Index)
}

func TestReadWrite(t *testing.T) {
	r := memory.NewRegion("test", 0x1000, 0x10)
	n := Name{Index: 12, Number: 2}
	assert.NoError(t, Write(r, 0x1004, n))

	read, err := Read(r, 0x1004)
	assert.NoError(t, err)
	assert.Equal(t, n, read)

	_, err = Read(r, 0x100C)
	assert.Error(t, err)
}
