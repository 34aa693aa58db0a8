package targets

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/llm-defender/defender-go/core/blacklist"
	"github.com/llm-defender/defender-go/core/registry"
	"github.com/llm-defender/defender-go/log"
)

func makeWorkers(n int) []registry.Worker {
	workers := make([]registry.Worker, n)
	for i := 0; i < n; i++ {
		workers[i] = registry.Worker{
			UID:    i,
			Hotkey: fmt.Sprintf("hotkey-%03d", i),
			Stake:  float64(i),
			IP:     "192.0.2.1",
		}
	}
	return workers
}

func TestSelect_filtering(t *testing.T) {
	r := require.New(t)

	workers := makeWorkers(6)
	workers[1].Stake = -1
	workers[2].IP = registry.UnroutableIP
	banned := blacklist.NewSet(workers[3].Hotkey)

	cursor := &Cursor{PageSize: 10}
	sel, err := Select(workers, banned, cursor, log.New())
	r.NoError(err)

	r.Equal([]int{3}, sel.Blacklisted)
	r.Equal([]int{1, 2}, sel.Invalid)
	r.Len(sel.ToQuery, 3)
	for _, w := range sel.ToQuery {
		r.True(w.Stake >= 0)
		r.NotEqual(registry.UnroutableIP, w.IP)
		r.False(banned.Contains(w.Hotkey))
	}
	// Page covers the whole population, cursor stays put.
	r.Equal(0, cursor.Group)
}

func TestSelect_fullCycleCoverage(t *testing.T) {
	r := require.New(t)

	workers := makeWorkers(10)
	cursor := &Cursor{PageSize: 3}

	var queried []int
	for rotation := 0; ; rotation++ {
		r.True(rotation < 10, "cursor never wrapped")
		sel, err := Select(workers, nil, cursor, log.New())
		r.NoError(err)
		for _, w := range sel.ToQuery {
			queried = append(queried, w.UID)
		}
		if cursor.Group == 0 {
			break
		}
	}

	// One full rotation covers the filtered population exactly once.
	r.Equal([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, queried)
}

func TestSelect_emptyPage(t *testing.T) {
	r := require.New(t)

	workers := makeWorkers(4)
	// Page boundary lands exactly on the tail.
	cursor := &Cursor{PageSize: 2, Group: 2}
	sel, err := Select(workers, nil, cursor, log.New())
	r.NoError(err)
	r.Empty(sel.ToQuery)
	r.Equal(2, cursor.Group)
}

func TestSelect_cursorOutOfBounds(t *testing.T) {
	r := require.New(t)

	workers := makeWorkers(4)
	cursor := &Cursor{PageSize: 2, Group: 5}
	_, err := Select(workers, nil, cursor, log.New())
	r.Error(err)
	r.Equal(ErrCursorOutOfBounds, errors.Cause(err))
}

func TestSelect_truncatedTailResetsCursor(t *testing.T) {
	r := require.New(t)

	workers := makeWorkers(5)
	cursor := &Cursor{PageSize: 3, Group: 1}
	sel, err := Select(workers, nil, cursor, log.New())
	r.NoError(err)
	r.Len(sel.ToQuery, 2)
	r.Equal(0, cursor.Group)
}
