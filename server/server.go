package main

import (
	"flag"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/chandylab/dinex"
	"github.com/chandylab/dinex/dining"
)

var id = flag.String("id", "", "rank of this process, 0..N-1")
var simulation = flag.Bool("sim", false, "run the whole ring in one process over in-memory channels")

func philosopher(rank dinex.Rank) {
	r := dining.NewReplica(rank)
	if err := r.Run(); err != nil {
		// protocol errors and invariant violations have no safe
		// local recovery
		logrus.Fatalf("philosopher %v: %v", rank, err)
	}
}

func main() {
	dinex.Init()

	if *simulation {
		dinex.Simulation()
		var wg sync.WaitGroup
		for rank := range dinex.GetConfig().Addrs {
			wg.Add(1)
			go func(r dinex.Rank) {
				defer wg.Done()
				philosopher(r)
			}(rank)
		}
		wg.Wait()
		return
	}

	rank, err := strconv.Atoi(*id)
	if err != nil {
		logrus.Fatalf("invalid rank %q: %v", *id, err)
	}
	philosopher(dinex.Rank(rank))
}
