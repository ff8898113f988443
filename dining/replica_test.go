package dining

import (
	"testing"
	"time"

	"github.com/chandylab/dinex"
)

func fastRingConfig(n int) {
	dinex.MakeDefaultConfig(n)
	cfg := dinex.GetConfig()
	cfg.ThinkMinMs = 5
	cfg.ThinkMaxMs = 10
	cfg.EatMs = 2
	cfg.TickMs = 1
}

// runRing starts n replicas over the in-memory chan transport and
// waits until every philosopher has eaten at least minMeals times.
func runRing(t *testing.T, n int, minMeals uint64, timeout time.Duration) {
	t.Helper()
	fastRingConfig(n)

	replicas := make([]*Replica, n)
	for i := 0; i < n; i++ {
		replicas[i] = NewReplica(dinex.Rank(i))
	}

	errc := make(chan error, n)
	for _, r := range replicas {
		go func(r *Replica) {
			errc <- r.Run()
		}(r)
	}
	defer func() {
		for _, r := range replicas {
			r.Stop()
		}
		for range replicas {
			if err := <-errc; err != nil {
				t.Errorf("replica run: %v", err)
			}
		}
	}()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		fed := 0
		for _, r := range replicas {
			if r.Meals() >= minMeals {
				fed++
			}
		}
		if fed == n {
			return
		}
		select {
		case err := <-errc:
			t.Fatalf("replica stopped early: %v", err)
		case <-time.After(5 * time.Millisecond):
		}
	}

	meals := make([]uint64, n)
	for i, r := range replicas {
		meals[i] = r.Meals()
	}
	t.Fatalf("not every philosopher ate %d times within %v: meals=%v", minMeals, timeout, meals)
}

func TestLiveRingFiveProcesses(t *testing.T) {
	runRing(t, 5, 2, 30*time.Second)
}

func TestLiveRingTwoProcesses(t *testing.T) {
	runRing(t, 2, 2, 30*time.Second)
}

func TestSnapshotReflectsState(t *testing.T) {
	fastRingConfig(3)
	r := NewReplica(0)
	defer r.Stop()

	snap := r.Snapshot()
	if snap.Rank != 0 {
		t.Errorf("snapshot rank = %d, want 0", snap.Rank)
	}
	if snap.Phase != "THINKING" {
		t.Errorf("initial phase = %q, want THINKING", snap.Phase)
	}
	if snap.LeftFork != "DIRTY" || snap.RightFork != "DIRTY" {
		t.Errorf("rank 0 must start with both forks dirty, got %s/%s", snap.LeftFork, snap.RightFork)
	}
	if snap.Meals != 0 {
		t.Errorf("initial meals = %d", snap.Meals)
	}
}
