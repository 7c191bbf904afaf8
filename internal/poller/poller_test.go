package poller

import (
	"io"
	"os"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeSource reads one byte per ReadOne call and reports its own id, so
// tests can tell which source a polled value came from.
type pipeSource struct {
	r  *os.File
	id int
}

func (s *pipeSource) Fd() int { return int(s.r.Fd()) }

func (s *pipeSource) ReadOne() (int, error) {
	buf := make([]byte, 1)
	n, err := s.r.Read(buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return s.id, nil
}

func newPipe(t *testing.T, id int) (*pipeSource, *os.File) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(); w.Close() })
	return &pipeSource{r: r, id: id}, w
}

func TestPoller_SingleSourceReady(t *testing.T) {
	p, err := New[int]()
	require.NoError(t, err)
	defer p.Close()

	src, w := newPipe(t, 7)
	require.NoError(t, p.Register(src))

	_, err = w.Write([]byte{1})
	require.NoError(t, err)

	v, err := p.Poll()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestPoller_DrainsBufferedItemsBeforeWaitingAgain(t *testing.T) {
	p, err := New[int]()
	require.NoError(t, err)
	defer p.Close()

	srcA, wA := newPipe(t, 1)
	srcB, wB := newPipe(t, 2)
	require.NoError(t, p.Register(srcA))
	require.NoError(t, p.Register(srcB))

	_, err = wA.Write([]byte{1})
	require.NoError(t, err)
	_, err = wB.Write([]byte{1})
	require.NoError(t, err)

	seen := map[int]int{}
	for i := 0; i < 2; i++ {
		v, err := p.Poll()
		require.NoError(t, err)
		seen[v]++
	}
	assert.Equal(t, 1, seen[1])
	assert.Equal(t, 1, seen[2])
}

func TestPoller_HangupReturnsClosedError(t *testing.T) {
	p, err := New[int]()
	require.NoError(t, err)
	defer p.Close()

	src, w := newPipe(t, 1)
	require.NoError(t, p.Register(src))
	require.NoError(t, w.Close())

	_, err = p.Poll()
	require.Error(t, err)
	var closedErr *ClosedError
	require.ErrorAs(t, err, &closedErr)
}

// TestPoller_FairnessOfDelivery is the property named in spec.md §8: if N
// sources are simultaneously ready with k_i items each, after Σk_i calls to
// Poll every item has been returned exactly once.
func TestPoller_FairnessOfDelivery(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("every written byte is observed exactly once", prop.ForAll(
		func(kA, kB int) bool {
			p, err := New[int]()
			if err != nil {
				return false
			}
			defer p.Close()

			srcA, wA := pipePair(1)
			srcB, wB := pipePair(2)
			defer srcA.r.Close()
			defer srcB.r.Close()
			defer wA.Close()
			defer wB.Close()

			if err := p.Register(srcA); err != nil {
				return false
			}
			if err := p.Register(srcB); err != nil {
				return false
			}

			if _, err := wA.Write(make([]byte, kA)); err != nil {
				return false
			}
			if _, err := wB.Write(make([]byte, kB)); err != nil {
				return false
			}

			seen := map[int]int{}
			total := kA + kB
			for i := 0; i < total; i++ {
				v, err := p.Poll()
				if err != nil {
					return false
				}
				seen[v]++
			}
			return seen[1] == kA && seen[2] == kB
		},
		gen.IntRange(1, 8),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}

func pipePair(id int) (*pipeSource, *os.File) {
	r, w, err := os.Pipe()
	if err != nil {
		panic(err)
	}
	return &pipeSource{r: r, id: id}, w
}
