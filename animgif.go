/*
Package animgif is a library for turning ordinary images into animated GIFs
and keeping them in a sqlite backed store.
*/
package animgif

import (
	"io/ioutil"
	"log"
	"runtime"
)

// Converter loads frame images, converts them to GIF frames and optionally
// stores the result.
type Converter struct {
	db     *AnimDB
	logger *log.Logger

	// Workers is the number of images loaded and frames encoded at once.
	Workers int
}

// New returns a Converter. db may be nil if nothing is stored and a nil
// logger discards everything.
func New(db *AnimDB, logger *log.Logger) *Converter {
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	return &Converter{
		db:      db,
		logger:  logger,
		Workers: runtime.NumCPU(),
	}
}

func (c *Converter) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}
