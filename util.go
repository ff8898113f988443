package dinex

import (
	"math/rand"
	"time"
)

// Retry attempts the function f up to attempts times, sleeping for the
// given duration between attempts, until f succeeds.
func Retry(f func() error, attempts int, sleep time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = f()
		if err == nil {
			return nil
		}
		time.Sleep(sleep)
	}
	return err
}

// RandBetween draws a duration uniformly from [min, max].
func RandBetween(rnd *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rnd.Int63n(int64(max-min)+1))
}
