package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSelfLoadIsACycle(t *testing.T) {
	g := newGuard()

	release, err := g.Acquire("/proj/A.zen", "", false)
	require.NoError(t, err)
	defer release()

	_, err = g.Acquire("/proj/A.zen", "/proj/A.zen", false)
	require.Error(t, err)

	var cyc *CycleError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"/proj/A.zen", "/proj/A.zen"}, cyc.Chain)
	assert.Equal(t, "cyclic load: /proj/A.zen -> /proj/A.zen", cyc.Error())
}

func TestAcquireIndirectCycle(t *testing.T) {
	g := newGuard()

	relA, err := g.Acquire("/A.zen", "", false)
	require.NoError(t, err)
	defer relA()
	relB, err := g.Acquire("/B.zen", "/A.zen", false)
	require.NoError(t, err)
	defer relB()
	relC, err := g.Acquire("/C.zen", "/B.zen", false)
	require.NoError(t, err)
	defer relC()

	_, err = g.Acquire("/A.zen", "/C.zen", false)
	var cyc *CycleError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"/A.zen", "/B.zen", "/C.zen", "/A.zen"}, cyc.Chain)
}

func TestAcquireDiamondIsNotACycle(t *testing.T) {
	g := newGuard()

	relA, err := g.Acquire("/A.zen", "", false)
	require.NoError(t, err)
	defer relA()
	relB, err := g.Acquire("/B.zen", "/A.zen", false)
	require.NoError(t, err)

	// B finished loading the shared dependency already; C loading it again
	// is a re-entry only if it is still on the active chain.
	relShared, err := g.Acquire("/shared.zen", "/B.zen", false)
	require.NoError(t, err)
	relShared()
	relB()

	relC, err := g.Acquire("/C.zen", "/A.zen", false)
	require.NoError(t, err)
	defer relC()
	relShared2, err := g.Acquire("/shared.zen", "/C.zen", false)
	require.NoError(t, err)
	relShared2()
}

func TestReleaseClearsInProgress(t *testing.T) {
	g := newGuard()

	release, err := g.Acquire("/A.zen", "", false)
	require.NoError(t, err)
	assert.True(t, g.InProgress("/A.zen"))

	release()
	assert.False(t, g.InProgress("/A.zen"))

	// The path is re-acquirable after release, e.g. retrying a failed load.
	release, err = g.Acquire("/A.zen", "", false)
	require.NoError(t, err)
	release()
}

func TestAcquireDirectoryRefCounts(t *testing.T) {
	g := newGuard()

	rel1, err := g.Acquire("/pkg", "/A.zen", true)
	require.NoError(t, err)
	rel2, err := g.Acquire("/pkg", "/B.zen", true)
	require.NoError(t, err)

	rel1()
	assert.True(t, g.InProgress("/pkg"))
	rel2()
	assert.False(t, g.InProgress("/pkg"))
}

func TestAcquireWaitsForOtherWorker(t *testing.T) {
	g := newGuard()

	release, err := g.Acquire("/shared.zen", "/A.zen", false)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		rel, err := g.Acquire("/shared.zen", "/B.zen", false)
		assert.NoError(t, err)
		rel()
		close(acquired)
	}()

	// The second worker must block while the first holds the entry.
	select {
	case <-acquired:
		t.Fatal("second acquire did not wait for the first")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire never woke up")
	}
}

func TestAcquireCrossWorkerCycleDetected(t *testing.T) {
	g := newGuard()

	// Worker 1: A in progress. Worker 2: B in progress.
	relA, err := g.Acquire("/A.zen", "", false)
	require.NoError(t, err)
	defer relA()
	relB, err := g.Acquire("/B.zen", "", false)
	require.NoError(t, err)
	defer relB()

	// Worker 1 loads B and blocks on worker 2.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rel, err := g.Acquire("/B.zen", "/A.zen", false)
		if err == nil {
			rel()
		}
	}()

	// Give worker 1 time to register its waiting edge.
	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return len(g.waiting["/B.zen"]) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Worker 2 loading A would complete the cycle: A waits on B, B would
	// wait on A. This must be rejected, not deadlocked.
	_, err = g.Acquire("/A.zen", "/B.zen", false)
	var cyc *CycleError
	require.ErrorAs(t, err, &cyc)

	relB()
	wg.Wait()
}
