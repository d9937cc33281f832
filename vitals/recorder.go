package vitals

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/structs"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// Recorder persists averaged-vitals records for offline analysis.
type Recorder interface {
	// Record buffers one averaged-vitals snapshot.
	Record(r Record)

	// Flush writes all buffered snapshots to storage.
	Flush()
}

type storedRecord struct {
	Timestamp string
	HR        float64
	SAP       float64
	DAP       float64
	MAP       float64
	SpO2      float64
	RR        float64
	EtCO2     float64
	Temp      float64
}

// sqliteRecorder batches records and writes them to a SQLite file in one
// transaction per flush.
type sqliteRecorder struct {
	db        *sql.DB
	pending   []storedRecord
	batchSize int
}

// NewSQLiteRecorder creates a recorder writing to path. An empty path
// generates a unique file name. The file must not already exist. A final
// flush is registered at exit.
func NewSQLiteRecorder(path string) Recorder {
	if path == "" {
		path = "sasicu_vitals_" + xid.New().String()
	}
	filename := path + ".sqlite3"

	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	r := &sqliteRecorder{db: db, batchSize: 1000}
	r.createTable()

	atexit.Register(func() { r.Flush() })

	return r
}

// NewSQLiteRecorderWithDB creates a recorder over an existing database
// handle. Used by tests with in-memory databases.
func NewSQLiteRecorderWithDB(db *sql.DB) Recorder {
	r := &sqliteRecorder{db: db, batchSize: 1000}
	r.createTable()
	return r
}

func (r *sqliteRecorder) createTable() {
	fields := strings.Join(structs.Names(storedRecord{}), ", \n\t")
	r.mustExecute("CREATE TABLE vitals (\n\t" + fields + "\n);")
}

func (r *sqliteRecorder) Record(rec Record) {
	r.pending = append(r.pending, storedRecord{
		Timestamp: rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		HR:        rec.HR,
		SAP:       rec.SAP,
		DAP:       rec.DAP,
		MAP:       rec.MAP,
		SpO2:      rec.SpO2,
		RR:        rec.RR,
		EtCO2:     rec.EtCO2,
		Temp:      rec.Temp,
	})

	if len(r.pending) >= r.batchSize {
		r.Flush()
	}
}

func (r *sqliteRecorder) Flush() {
	if len(r.pending) == 0 {
		return
	}

	r.mustExecute("BEGIN TRANSACTION")
	defer r.mustExecute("COMMIT TRANSACTION")

	placeholders := make([]string, len(structs.Names(storedRecord{})))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	stmt, err := r.db.Prepare(
		"INSERT INTO vitals VALUES (" + strings.Join(placeholders, ", ") + ")")
	if err != nil {
		panic(err)
	}
	defer stmt.Close()

	for _, rec := range r.pending {
		_, err := stmt.Exec(structs.Values(rec)...)
		if err != nil {
			panic(err)
		}
	}
	r.pending = nil
}

func (r *sqliteRecorder) mustExecute(query string) {
	if _, err := r.db.Exec(query); err != nil {
		fmt.Fprintf(os.Stderr, "failed to execute: %s\n", query)
		panic(err)
	}
}
