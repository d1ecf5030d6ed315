// Package sqlitecache persists the last reconciled record generation in a
// local SQLite file so a restarted tracker serves data before its first
// successful refresh. Records are stored as JSON documents; the schema is
// created on open.
package sqlitecache

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	_ "modernc.org/sqlite"

	"github.com/andrewwormald/floortrack"
)

const schema = `
create table if not exists record_cache (
  id         text primary key,
  version    integer not null,
  doc        text not null,
  updated_at timestamp not null default current_timestamp
);`

func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open cache db", j.KV("path", path))
	}

	// modernc sqlite serialises writes itself; a single connection avoids
	// SQLITE_BUSY on concurrent saves.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(schema)
	if err != nil {
		return nil, errors.Wrap(err, "migrate cache db", j.KV("path", path))
	}

	return &Cache{db: db}, nil
}

var _ floortrack.RecordCache = (*Cache)(nil)

type Cache struct {
	db *sql.DB
}

func (c *Cache) Load(ctx context.Context) ([]*floortrack.ProductionRecord, error) {
	rows, err := c.db.QueryContext(ctx, "select doc from record_cache order by id asc")
	if err != nil {
		return nil, errors.Wrap(err, "query cache")
	}
	defer rows.Close()

	var records []*floortrack.ProductionRecord
	for rows.Next() {
		var doc string
		err := rows.Scan(&doc)
		if err != nil {
			return nil, errors.Wrap(err, "scan cache row")
		}

		var record floortrack.ProductionRecord
		err = json.Unmarshal([]byte(doc), &record)
		if err != nil {
			return nil, errors.Wrap(err, "unmarshal cached record")
		}

		records = append(records, &record)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "iterate cache rows")
	}

	return records, nil
}

func (c *Cache) Save(ctx context.Context, records []*floortrack.ProductionRecord) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin cache tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "delete from record_cache")
	if err != nil {
		return errors.Wrap(err, "clear cache")
	}

	for _, record := range records {
		doc, err := json.Marshal(record)
		if err != nil {
			return errors.Wrap(err, "marshal record", j.KV("record_id", record.ID))
		}

		_, err = tx.ExecContext(ctx,
			"insert into record_cache (id, version, doc) values (?, ?, ?)",
			record.ID, record.Version, string(doc),
		)
		if err != nil {
			return errors.Wrap(err, "insert cached record", j.KV("record_id", record.ID))
		}
	}

	err = tx.Commit()
	if err != nil {
		return errors.Wrap(err, "commit cache tx")
	}

	return nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}
