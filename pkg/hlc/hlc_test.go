package hlc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fixedWall(vals ...uint64) NowFunc {
	i := 0
	return func() uint64 {
		if i >= len(vals) {
			i = len(vals) - 1
		}
		v := vals[i]
		i++
		return v
	}
}

func TestNowIsMonotonic(t *testing.T) {
	c := New(fixedWall(100, 100, 100))
	a := c.Now()
	b := c.Now()
	d := c.Now()
	require.True(t, a.Less(b))
	require.True(t, b.Less(d))
}

func TestObserveBumpsPastRemote(t *testing.T) {
	c := New(fixedWall(10))
	remote := Timestamp{Wall: 1000, Logic: 5}
	observed := c.Observe(remote)
	require.True(t, remote.Less(observed))
}

func TestCompare(t *testing.T) {
	require.Equal(t, 0, Timestamp{Wall: 1, Logic: 1}.Compare(Timestamp{Wall: 1, Logic: 1}))
	require.Equal(t, -1, Timestamp{Wall: 1, Logic: 1}.Compare(Timestamp{Wall: 1, Logic: 2}))
	require.Equal(t, 1, Timestamp{Wall: 2, Logic: 0}.Compare(Timestamp{Wall: 1, Logic: 99}))
}
