package animgif

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/bodgit/animgif/gif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) (*AnimDB, func()) {
	dir, err := ioutil.TempDir("", "animgif")
	require.NoError(t, err)

	db, err := NewAnimDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)

	return db, func() {
		db.Close()
		os.RemoveAll(dir)
	}
}

func testGIF(t *testing.T, c gif.RGB) *gif.GIF {
	g := gif.New(3, 2, gif.RGB{})
	require.NoError(t, g.AddFrame(gif.NewFrame(3, 2, c, 4)))
	require.NoError(t, g.AddFrame(gif.NewFrame(3, 2, gif.RGB{}, 4)))
	return g
}

func TestAnimDB(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	red := testGIF(t, gif.RGB{R: 0xff})
	require.NoError(t, db.Put("red", red))
	require.NoError(t, db.Put("also red", testGIF(t, gif.RGB{R: 0xff})))

	b, err := db.Get("red")
	require.NoError(t, err)
	want, err := red.Render()
	require.NoError(t, err)
	assert.Equal(t, want, b)

	g, err := db.Load("red")
	require.NoError(t, err)
	assert.Equal(t, red.Frames, g.Frames)

	entries, err := db.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "also red", entries[0].Name)
	assert.Equal(t, "red", entries[1].Name)
	assert.Equal(t, entries[0].SHA1, entries[1].SHA1)
	assert.Equal(t, Entry{Name: "red", SHA1: entries[1].SHA1, Width: 3, Height: 2, Frames: 2, Size: len(want)}, entries[1])

	var streams int
	require.NoError(t, db.db.QueryRow("SELECT COUNT(*) FROM stream").Scan(&streams))
	assert.Equal(t, 1, streams)

	// Replacing a name drops the stream nothing else uses
	require.NoError(t, db.Put("red", testGIF(t, gif.RGB{G: 0xff})))
	require.NoError(t, db.Put("also red", testGIF(t, gif.RGB{B: 0xff})))
	require.NoError(t, db.db.QueryRow("SELECT COUNT(*) FROM stream").Scan(&streams))
	assert.Equal(t, 2, streams)

	require.NoError(t, db.Delete("red"))
	b, err = db.Get("red")
	assert.NoError(t, err)
	assert.Nil(t, b)

	g, err = db.Load("red")
	assert.NoError(t, err)
	assert.Nil(t, g)
}

func TestAnimDBImport(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	b, err := testGIF(t, gif.RGB{B: 0x80}).Render()
	require.NoError(t, err)

	require.NoError(t, db.Import("blue", bytes.NewReader(b)))
	stored, err := db.Get("blue")
	require.NoError(t, err)
	assert.Equal(t, b, stored)

	assert.Error(t, db.Import("junk", bytes.NewReader([]byte("GIF89a"))))
	stored, err = db.Get("junk")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestConverterStore(t *testing.T) {
	assert.Error(t, New(nil, nil).Store("x", testGIF(t, gif.RGB{})))

	db, cleanup := testDB(t)
	defer cleanup()

	require.NoError(t, New(db, nil).Store("x", testGIF(t, gif.RGB{})))
	entries, err := db.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
