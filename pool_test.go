package relo

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolCapacity(t *testing.T) {
	l := New(NewSymbols())
	var all []*Module
	for i := 0; i < PoolMax; i++ {
		m, err := l.allocate("mod" + strconv.Itoa(i))
		require.NoError(t, err)
		l.register(m)
		all = append(all, m)
	}
	_, err := l.allocate("straw")
	require.ErrorIs(t, err, ErrPoolExhausted)

	require.NoError(t, l.release(all[3]))
	m, err := l.allocate("reused")
	require.NoError(t, err)
	require.Same(t, all[3], m, "free list must be consumed before carving")
	require.Equal(t, "reused", m.name)
	require.Zero(t, m.refs)
	require.Equal(t, FlagPrelinked, m.flags)
	require.Nil(t, m.next)
}

func TestPoolNameBound(t *testing.T) {
	l := New(NewSymbols())
	_, err := l.allocate(strings.Repeat("n", NameMax))
	require.ErrorIs(t, err, ErrNameTooLong)
	// one below the bound is fine
	m, err := l.allocate(strings.Repeat("n", NameMax-1))
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestPoolReleaseUnregistered(t *testing.T) {
	l := New(NewSymbols())
	m, err := l.allocate("loose")
	require.NoError(t, err)
	// never registered
	require.ErrorIs(t, l.release(m), ErrNotRegistered)
}

func TestPoolReleaseKeepsOrder(t *testing.T) {
	l := New(NewSymbols())
	names := []string{"a", "b", "c"}
	mods := map[string]*Module{}
	for _, n := range names {
		m, err := l.allocate(n)
		require.NoError(t, err)
		l.register(m)
		mods[n] = m
	}
	require.NoError(t, l.release(mods["b"]))
	require.Equal(t, []string{"a", "c"}, l.Modules())
	require.Nil(t, l.lookup("b"))
	require.NotNil(t, l.lookup("a"))
}

func TestPoolGenerationBumpOnRelease(t *testing.T) {
	l := New(NewSymbols())
	m, err := l.allocate("gen")
	require.NoError(t, err)
	l.register(m)
	ref := Ref{mod: m, gen: m.gen}
	require.True(t, ref.Valid())
	require.NoError(t, l.release(m))
	require.False(t, ref.Valid())
	if !errors.Is(l.Release(ref), ErrNotRegistered) {
		t.Fatal("stale ref must not release the recycled slot")
	}
}
