// Package pipeline joins the error channels of a set of workers.
package pipeline

import "sync"

// Wait blocks until every channel is closed and returns the first non-nil
// error received. It keeps draining after an error so no worker is left
// blocked on a send.
func Wait(errs ...<-chan error) error {
	var first error
	for err := range Merge(errs...) {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Merge fans the channels in to a single channel, closed once they all are.
// The channel is buffered to hold one value from each input.
func Merge(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
