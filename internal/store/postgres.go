package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Postgres keeps one row per user with each top-level document field in
// its own JSONB column, so a partial write touches only the named fields.
// Change fan-out rides Redis pub/sub; a subscriber re-reads the row when
// its channel fires.
type Postgres struct {
	db    *sql.DB
	redis *redis.Client
}

// NewPostgres wraps an open connection pair.
func NewPostgres(db *sql.DB, redisClient *redis.Client) *Postgres {
	return &Postgres{db: db, redis: redisClient}
}

func changeChannel(userID string) string { return "docchange:" + userID }

// EnsureSchema creates the document table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS user_documents (
			user_id                TEXT PRIMARY KEY,
			subjects               JSONB NOT NULL DEFAULT '[]',
			schedule               JSONB NOT NULL DEFAULT '[]',
			min_attendance_percent INT   NOT NULL DEFAULT 75,
			attendance_records     JSONB NOT NULL DEFAULT '{}',
			updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// Read loads the user's document.
func (p *Postgres) Read(ctx context.Context, userID string) (Document, bool, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT subjects, schedule, min_attendance_percent, attendance_records
		FROM user_documents WHERE user_id = $1
	`, userID)

	var subjects, week, records []byte
	doc := NewDocument()
	if err := row.Scan(&subjects, &week, &doc.MinAttendancePercent, &records); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, false, nil
		}
		return Document{}, false, err
	}
	if err := json.Unmarshal(subjects, &doc.Subjects); err != nil {
		return Document{}, false, fmt.Errorf("decode subjects: %w", err)
	}
	if err := json.Unmarshal(week, &doc.Schedule); err != nil {
		return Document{}, false, fmt.Errorf("decode schedule: %w", err)
	}
	if err := json.Unmarshal(records, &doc.AttendanceRecords); err != nil {
		return Document{}, false, fmt.Errorf("decode records: %w", err)
	}
	return doc, true, nil
}

// Write upserts only the fields named in the partial and publishes a
// change event for subscribers.
func (p *Postgres) Write(ctx context.Context, userID string, part Partial) error {
	var subjects, week, records any
	var minPercent any
	if part.Subjects != nil {
		b, err := json.Marshal(*part.Subjects)
		if err != nil {
			return err
		}
		subjects = b
	}
	if part.Schedule != nil {
		b, err := json.Marshal(*part.Schedule)
		if err != nil {
			return err
		}
		week = b
	}
	if part.MinAttendancePercent != nil {
		minPercent = *part.MinAttendancePercent
	}
	if part.AttendanceRecords != nil {
		b, err := json.Marshal(*part.AttendanceRecords)
		if err != nil {
			return err
		}
		records = b
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO user_documents (user_id, subjects, schedule, min_attendance_percent, attendance_records)
		VALUES ($1,
			COALESCE($2, '[]'::jsonb),
			COALESCE($3, '[]'::jsonb),
			COALESCE($4, 75),
			COALESCE($5, '{}'::jsonb))
		ON CONFLICT (user_id) DO UPDATE SET
			subjects               = COALESCE($2, user_documents.subjects),
			schedule               = COALESCE($3, user_documents.schedule),
			min_attendance_percent = COALESCE($4, user_documents.min_attendance_percent),
			attendance_records     = COALESCE($5, user_documents.attendance_records),
			updated_at             = NOW()
	`, userID, subjects, week, minPercent, records)
	if err != nil {
		return err
	}

	if p.redis != nil {
		if err := p.redis.Publish(ctx, changeChannel(userID), "changed").Err(); err != nil {
			log.Printf("doc change publish failed for %s: %v", userID, err)
		}
	}
	return nil
}

// Subscribe re-reads the document whenever a change event arrives and
// hands the fresh copy to fn.
func (p *Postgres) Subscribe(ctx context.Context, userID string, fn func(Document)) (func(), error) {
	if p.redis == nil {
		return func() {}, nil
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := p.redis.Subscribe(subCtx, changeChannel(userID))
	if _, err := sub.Receive(subCtx); err != nil {
		cancel()
		return nil, err
	}

	go func() {
		defer sub.Close()
		for {
			select {
			case _, ok := <-sub.Channel():
				if !ok {
					return
				}
				doc, found, err := p.Read(subCtx, userID)
				if err != nil {
					log.Printf("re-read after change failed for %s: %v", userID, err)
					continue
				}
				if found {
					fn(doc)
				}
			case <-subCtx.Done():
				return
			}
		}
	}()
	return cancel, nil
}
