// Database management
//
// Copyright (c) 2024  Philip Kaludercic
//
// This file is part of go-trb.
//
// go-trb is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-trb is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-trb. If not, see
// <http://www.gnu.org/licenses/>

package db

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"io/fs"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"go-trb"
	"go-trb/cmd"
	"go-trb/game"
	"go-trb/score"
)

//go:embed *.sql
var sqlDir embed.FS

type db struct {
	// The database connections
	read  *sql.DB
	write *sql.DB

	// The SQL queries are embedded from *.sql files.  QUERIES are
	// handled by READ, and COMMANDS are handled by WRITE.
	queries  map[string]*sql.Stmt
	commands map[string]*sql.Stmt
}

func (db *db) StartRun(ctx context.Context, r *score.Report) {
	_, err := db.commands["insert-run"].ExecContext(ctx,
		r.RunId, r.BenchmarkId, r.Candidate, r.Status,
		r.BaselineManifestVersion)
	if err != nil {
		log.Print(err)
	}
}

func (db *db) FinishRun(ctx context.Context, r *score.Report) {
	var report interface{}
	if r.Status == score.StatusCompleted {
		data, err := json.Marshal(r)
		if err != nil {
			log.Print(err)
			return
		}
		report = string(data)
	}

	_, err := db.commands["update-run"].ExecContext(ctx,
		r.Status,
		r.BPS, r.FPS, r.SRS, r.BotScore,
		r.CrashRate,
		r.MatchesPlayed, r.MatchesInconclusive,
		report,
		r.RunId)
	if err != nil {
		log.Print(err)
	}
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func (db *db) SaveMatch(ctx context.Context, run string, m *game.Match) {
	tx, err := db.write.BeginTx(ctx, nil)
	if err != nil {
		log.Print(err)
		return
	}

	if err = db.saveMatch(ctx, tx, run, m); err != nil {
		log.Print(err)
		if err = tx.Rollback(); err != nil {
			log.Print(err)
		}
		return
	}

	if err = tx.Commit(); err != nil {
		log.Print(err)
	}
}

func (db *db) saveMatch(ctx context.Context, tx *sql.Tx, run string, m *game.Match) error {
	var merr interface{}
	if m.Err != nil {
		merr = m.Err.Error()
	}

	trb.Debug.Printf("Saving match %s of run %s", m, run)
	_, err := tx.Stmt(db.commands["insert-battle"]).ExecContext(ctx,
		m.Id.String(), run,
		m.Name, m.GameType, m.Opponent,
		m.Seed, m.Setup.Rounds,
		m.Port, m.Attempts,
		m.Outcome(), merr,
		nullTime(m.Started), nullTime(m.Finished))
	if err != nil {
		return errors.Wrapf(err, "saving %s", m)
	}

	insert := tx.Stmt(db.commands["insert-result"])
	for i, res := range m.Results {
		_, err = insert.ExecContext(ctx,
			m.Id.String(), i, res.Name,
			res.TotalScore,
			res.BulletDamage, res.BulletDamageBonus,
			res.RamDamage, res.RamDamageBonus,
			res.Survival, res.LastSurvivorBonus)
		if err != nil {
			return errors.Wrapf(err, "saving result of %s", res.Name)
		}
	}
	return nil
}

// QueryRuns sends the runs on PAGE to C, most recent first
func (db *db) QueryRuns(ctx context.Context, c chan<- *score.Report, page int) {
	defer close(c)
	rows, err := db.queries["select-runs"].QueryContext(ctx, page)
	if err != nil {
		log.Print(err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r         score.Report
			benchmark sql.NullString
			manifest  sql.NullInt64
			report    sql.NullString
		)

		err = rows.Scan(
			&r.RunId,
			&benchmark,
			&r.Candidate,
			&r.Status,
			&manifest,
			&report)
		if err != nil {
			log.Print(err)
			return
		}
		if report.Valid {
			if err = json.Unmarshal([]byte(report.String), &r); err != nil {
				log.Print(err)
				return
			}
		}
		r.BenchmarkId = benchmark.String
		r.BaselineManifestVersion = int(manifest.Int64)

		select {
		case c <- &r:
		case <-ctx.Done():
			return
		}
	}
	if err = rows.Err(); err != nil {
		log.Print(err)
	}
}

func (db *db) scanMatch(scan func(dest ...interface{}) error) (*game.Match, error) {
	var (
		m        game.Match
		id       string
		opponent sql.NullString
		port     sql.NullInt64
		attempts sql.NullInt64
		merr     sql.NullString
		started  sql.NullTime
		finished sql.NullTime
	)

	err := scan(
		&id,
		&m.Name,
		&m.GameType,
		&opponent,
		&m.Seed,
		&m.Setup.Rounds,
		&port,
		&attempts,
		&merr,
		&started,
		&finished)
	if err != nil {
		return nil, err
	}

	m.Id, err = uuid.Parse(id)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid match id %q", id)
	}
	m.Setup.GameType = m.GameType
	m.Setup.Seed = m.Seed
	m.Opponent = opponent.String
	m.Port = int(port.Int64)
	m.Attempts = int(attempts.Int64)
	if merr.Valid {
		m.Err = errors.New(merr.String)
	}
	m.Started = started.Time
	m.Finished = finished.Time
	return &m, nil
}

// QueryMatches sends all matches of the run RUN to C
func (db *db) QueryMatches(ctx context.Context, run string, c chan<- *game.Match) {
	defer close(c)
	rows, err := db.queries["select-battles"].QueryContext(ctx, run)
	if err != nil {
		log.Print(err)
		return
	}
	defer rows.Close()

	var matches []*game.Match
	for rows.Next() {
		m, err := db.scanMatch(rows.Scan)
		if err != nil {
			log.Print(err)
			return
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		log.Print(err)
		return
	}

	for _, m := range matches {
		if err = db.queryResults(ctx, m); err != nil {
			log.Print(err)
			return
		}
		select {
		case c <- m:
		case <-ctx.Done():
			return
		}
	}
}

func (db *db) queryResults(ctx context.Context, m *game.Match) error {
	rows, err := db.queries["select-results"].QueryContext(ctx, m.Id.String())
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var res trb.RawMatchResult
		err = rows.Scan(
			&res.Name,
			&res.TotalScore,
			&res.BulletDamage,
			&res.BulletDamageBonus,
			&res.RamDamage,
			&res.RamDamageBonus,
			&res.Survival,
			&res.LastSurvivorBonus)
		if err != nil {
			return err
		}
		m.Results = append(m.Results, res)
	}
	return rows.Err()
}

func (db *db) Start(st *cmd.State, conf *cmd.Conf) {
	tick := time.NewTicker(24 * time.Hour)
	defer tick.Stop()
	for {
		select {
		case <-st.Context.Done():
			return
		case <-tick.C:
		}

		res, err := db.commands["update-stale"].Exec()
		if err != nil {
			log.Print(err)
			continue
		}
		n, err := res.RowsAffected()
		if err != nil {
			log.Print(err)
			continue
		}
		trb.Debug.Println("Marked", n, "stale runs as aborted")

		// https://www.sqlite.org/pragma.html#pragma_optimize
		if _, err = db.write.Exec("PRAGMA optimize;"); err != nil {
			log.Print(err)
		}
	}
}

func (db *db) Shutdown() {
	var err error

	// https://www.sqlite.org/pragma.html#pragma_optimize
	_, err = db.write.Exec("PRAGMA optimize;")
	if err != nil {
		log.Print(err)
	}

	for _, stmt := range db.queries {
		stmt.Close()
	}
	for _, stmt := range db.commands {
		stmt.Close()
	}

	err = db.write.Close()
	if err != nil {
		log.Print(err)
	}

	err = db.read.Close()
	if err != nil {
		log.Print(err)
	}
}

func (*db) String() string { return "Database Manager" }

// Open the database FILE and prepare all queries
func open(file string) (*db, error) {
	read, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	read.SetConnMaxLifetime(0)
	read.SetMaxIdleConns(1)

	write, err := sql.Open("sqlite3", file)
	if err != nil {
		read.Close()
		return nil, errors.Wrap(err, file)
	}
	write.SetConnMaxLifetime(0)
	write.SetMaxIdleConns(1)
	write.SetMaxOpenConns(1)

	db := &db{
		queries:  make(map[string]*sql.Stmt),
		commands: make(map[string]*sql.Stmt),
		write:    write,
		read:     read,
	}
	if err = db.prepare(); err != nil {
		db.Shutdown()
		return nil, err
	}
	return db, nil
}

func (db *db) prepare() error {
	for _, pragma := range []string{
		// https://www.sqlite.org/pragma.html#pragma_journal_mode
		"journal_mode = WAL",
		// https://www.sqlite.org/pragma.html#pragma_synchronous
		"synchronous = normal",
		// https://www.sqlite.org/pragma.html#pragma_temp_store
		"temp_store = memory",
		// https://www.sqlite.org/pragma.html#pragma_foreign_keys
		"foreign_keys = on",
	} {
		trb.Debug.Printf("Run PRAGMA %v", pragma)
		if _, err := db.write.Exec("PRAGMA " + pragma + ";"); err != nil {
			return errors.Wrap(err, pragma)
		}
	}

	entries, err := sqlDir.ReadDir(".")
	if err != nil {
		return err
	}

	// Tables have to exist before statements can be prepared
	var stmts []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		base := path.Base(entry.Name())
		if !strings.HasPrefix(base, "create-") {
			stmts = append(stmts, base)
			continue
		}
		data, err := fs.ReadFile(sqlDir, entry.Name())
		if err != nil {
			return err
		}
		if _, err = db.write.Exec(string(data)); err != nil {
			return errors.Wrap(err, base)
		}
		trb.Debug.Printf("Executed query %v", base)
	}

	for _, base := range stmts {
		data, err := fs.ReadFile(sqlDir, base)
		if err != nil {
			return err
		}

		query := strings.TrimSuffix(base, ".sql")
		if strings.HasPrefix(query, "select-") {
			db.queries[query], err = db.read.Prepare(string(data))
			trb.Debug.Printf("Registered query %v", query)
		} else {
			db.commands[query], err = db.write.Prepare(string(data))
			trb.Debug.Printf("Registered command %v", query)
		}
		if err != nil {
			return errors.Wrap(err, base)
		}
	}

	if len(db.queries) == 0 {
		panic("No queries loaded")
	}
	return nil
}

// Register the database as the ledger of the state, if configured
func Register(st *cmd.State, conf *cmd.Conf) {
	if conf.Database.File == "" {
		return
	}

	db, err := open(conf.Database.File)
	if err != nil {
		log.Fatal(err, ": ", conf.Database.File)
	}
	st.Register(cmd.Ledger(db))
}
