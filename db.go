package animgif

import (
	"bytes"
	"crypto/sha1"
	"database/sql"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/bodgit/animgif/gif"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// AnimDB stores rendered animations by name. Identical streams stored under
// different names share one copy.
type AnimDB struct {
	db *sql.DB
}

// Entry describes a stored animation.
type Entry struct {
	Name          string
	SHA1          string
	Width, Height int
	Frames        int
	Size          int
}

// NewAnimDB opens or creates the store in file.
func NewAnimDB(file string) (*AnimDB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS stream (id INTEGER PRIMARY KEY NOT NULL, sha1 TEXT NOT NULL UNIQUE, data BLOB NOT NULL)"); err != nil {
		return nil, err
	}

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS animation (id INTEGER PRIMARY KEY NOT NULL, name TEXT NOT NULL UNIQUE, width INTEGER NOT NULL, height INTEGER NOT NULL, frames INTEGER NOT NULL, stream_id INTEGER NOT NULL, FOREIGN KEY(stream_id) REFERENCES stream(id))"); err != nil {
		return nil, err
	}

	return &AnimDB{
		db: db,
	}, nil
}

// Close closes the store.
func (db *AnimDB) Close() error {
	return db.db.Close()
}

func (db *AnimDB) addStream(sha string, b []byte) (int64, error) {
	var id int64
	switch err := db.db.QueryRow("SELECT id FROM stream WHERE sha1 = ?", sha).Scan(&id); err {
	case sql.ErrNoRows:
		result, err := db.db.Exec("INSERT INTO stream (sha1, data) VALUES (?, ?)", sha, b)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	case nil:
		return id, nil
	default:
		return 0, err
	}
}

func (db *AnimDB) put(name, sha string, b []byte, g *gif.GIF) error {
	id, err := db.addStream(sha, b)
	if err != nil {
		return err
	}
	if _, err := db.db.Exec("INSERT OR REPLACE INTO animation (name, width, height, frames, stream_id) VALUES (?, ?, ?, ?, ?)", name, g.Width, g.Height, len(g.Frames), id); err != nil {
		return err
	}
	return db.prune()
}

// prune removes streams no longer referenced by any animation.
func (db *AnimDB) prune() error {
	_, err := db.db.Exec("DELETE FROM stream WHERE id NOT IN (SELECT stream_id FROM animation)")
	return err
}

// Put renders g and stores it under name, replacing any existing animation
// with that name.
func (db *AnimDB) Put(name string, g *gif.GIF) error {
	b, err := g.Render()
	if err != nil {
		return err
	}
	return db.put(name, fmt.Sprintf("%X", sha1.Sum(b)), b, g)
}

// Import stores the GIF read from r under name. The stream is validated but
// kept as is.
func (db *AnimDB) Import(name string, r io.Reader) error {
	h := sha1.New()
	b, err := ioutil.ReadAll(io.TeeReader(r, h))
	if err != nil {
		return err
	}
	g, err := gif.DecodeBytes(b)
	if err != nil {
		return errors.Wrap(err, name)
	}
	return db.put(name, fmt.Sprintf("%X", h.Sum(nil)), b, g)
}

// Get returns the stream stored under name, or nil if there is none.
func (db *AnimDB) Get(name string) ([]byte, error) {
	var b []byte
	switch err := db.db.QueryRow("SELECT s.data FROM animation AS a JOIN stream AS s ON a.stream_id = s.id WHERE a.name = ?", name).Scan(&b); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		return b, nil
	default:
		return nil, err
	}
}

// Load decodes the animation stored under name, or returns nil if there is
// none.
func (db *AnimDB) Load(name string) (*gif.GIF, error) {
	b, err := db.Get(name)
	if err != nil || b == nil {
		return nil, err
	}
	return gif.Decode(bytes.NewReader(b))
}

// Delete removes the animation stored under name.
func (db *AnimDB) Delete(name string) error {
	if _, err := db.db.Exec("DELETE FROM animation WHERE name = ?", name); err != nil {
		return err
	}
	return db.prune()
}

// List returns every stored animation ordered by name.
func (db *AnimDB) List() ([]Entry, error) {
	rows, err := db.db.Query("SELECT a.name, s.sha1, a.width, a.height, a.frames, length(s.data) FROM animation AS a JOIN stream AS s ON a.stream_id = s.id ORDER BY a.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.SHA1, &e.Width, &e.Height, &e.Frames, &e.Size); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
