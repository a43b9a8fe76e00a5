// Package record persists the externally observable effects of a
// simulation run into a SQLite database: bus operations, snoop responses,
// L1 messages, and the final statistics.
package record

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/llcsim/llc"
)

type busOpEntry struct {
	seq  int64
	op   string
	addr uint64
}

type snoopEntry struct {
	seq    int64
	addr   uint64
	result string
}

type messageEntry struct {
	seq     int64
	message string
	addr    uint64
}

// A Recorder buffers simulation events and writes them to a SQLite
// database in batches. Flush is registered with atexit so the database is
// complete on every exit path.
type Recorder struct {
	db        *sql.DB
	batchSize int
	closed    bool

	seq      int64
	busOps   []busOpEntry
	snoops   []snoopEntry
	messages []messageEntry
}

// Open creates the database and its tables. With an empty name a unique
// one is generated. An existing file is never overwritten.
func Open(name string) (*Recorder, error) {
	if name == "" {
		name = "llcsim_" + xid.New().String()
	}

	filename := name + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("recording file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open recording database: %w", err)
	}

	r := &Recorder{
		db:        db,
		batchSize: 100000,
	}
	if err := r.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	atexit.Register(func() { r.Flush() })

	return r, nil
}

func (r *Recorder) createTables() error {
	stmts := []string{
		`CREATE TABLE bus_ops (seq INTEGER, op TEXT, address INTEGER)`,
		`CREATE TABLE snoop_results (seq INTEGER, address INTEGER, result TEXT)`,
		`CREATE TABLE l1_messages (seq INTEGER, message TEXT, address INTEGER)`,
		`CREATE TABLE stats (reads INTEGER, writes INTEGER,
			hits INTEGER, misses INTEGER, hit_ratio REAL)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("create recording tables: %w", err)
		}
	}

	return nil
}

func (r *Recorder) next() int64 {
	r.seq++
	return r.seq
}

// RecordBusOp records an outbound bus operation.
func (r *Recorder) RecordBusOp(op llc.BusOp, addr uint64) {
	r.busOps = append(r.busOps, busOpEntry{seq: r.next(), op: op.String(), addr: addr})
	r.flushIfFull()
}

// RecordSnoopResult records a snoop response given to the bus.
func (r *Recorder) RecordSnoopResult(addr uint64, result llc.SnoopResult) {
	r.snoops = append(r.snoops,
		snoopEntry{seq: r.next(), addr: addr, result: result.String()})
	r.flushIfFull()
}

// RecordMessage records an inclusivity message sent to L1.
func (r *Recorder) RecordMessage(msg llc.L1Message, addr uint64) {
	r.messages = append(r.messages,
		messageEntry{seq: r.next(), message: msg.String(), addr: addr})
	r.flushIfFull()
}

// RecordStats writes the final statistics row.
func (r *Recorder) RecordStats(s llc.Stats) {
	ratio, _ := s.HitRatio()
	_, err := r.db.Exec(
		`INSERT INTO stats (reads, writes, hits, misses, hit_ratio)
			VALUES (?, ?, ?, ?, ?)`,
		s.Reads, s.Writes, s.Hits, s.Misses, ratio)
	if err != nil {
		panic(err)
	}
}

func (r *Recorder) flushIfFull() {
	if len(r.busOps)+len(r.snoops)+len(r.messages) >= r.batchSize {
		r.Flush()
	}
}

// Flush writes all buffered events to the database. Flushing a closed
// recorder is a no-op, so the atexit handler is safe after Close.
func (r *Recorder) Flush() {
	if r.closed {
		return
	}

	tx, err := r.db.Begin()
	if err != nil {
		panic(err)
	}

	for _, e := range r.busOps {
		if _, err := tx.Exec(
			`INSERT INTO bus_ops (seq, op, address) VALUES (?, ?, ?)`,
			e.seq, e.op, e.addr); err != nil {
			panic(err)
		}
	}
	for _, e := range r.snoops {
		if _, err := tx.Exec(
			`INSERT INTO snoop_results (seq, address, result) VALUES (?, ?, ?)`,
			e.seq, e.addr, e.result); err != nil {
			panic(err)
		}
	}
	for _, e := range r.messages {
		if _, err := tx.Exec(
			`INSERT INTO l1_messages (seq, message, address) VALUES (?, ?, ?)`,
			e.seq, e.message, e.addr); err != nil {
			panic(err)
		}
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	r.busOps = r.busOps[:0]
	r.snoops = r.snoops[:0]
	r.messages = r.messages[:0]
}

// Close flushes buffered events and closes the database.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}

	r.Flush()
	r.closed = true

	return r.db.Close()
}
