package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = sql.ErrNoRows

type NoticeRepo struct{ DB *sql.DB }

func NewNoticeRepo(db *sql.DB) *NoticeRepo { return &NoticeRepo{DB: db} }

// Notice is one recognized and classified image.
type Notice struct {
	ID          int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ImageHash   string
	Engine      string
	Source      string // "http" | "telegram" | "cli"
	ChatID      int64
	Text        string
	HasFullText bool
	Category    string
	Hits        int
}

const schema = `
create table if not exists notices (
  id              bigserial primary key,
  created_at      timestamptz not null default now(),
  updated_at      timestamptz not null default now(),
  image_hash      text        not null,
  engine          text        not null,
  source          text        not null default '',
  chat_id         bigint,
  recognized_text text        not null default '',
  has_full_text   boolean     not null default false,
  category        text        not null,
  hits            integer     not null default 1,
  unique (image_hash, engine)
);
create index if not exists notices_category_idx on notices (category);`

// Migrate creates the notices table if it does not exist yet.
func (r *NoticeRepo) Migrate(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// FindByHash returns the stored notice for (imageHash, engine).
// If maxAge > 0 and the row is older, it returns ErrNotFound so the image is recognized again.
func (r *NoticeRepo) FindByHash(ctx context.Context, imageHash, engine string, maxAge time.Duration) (*Notice, error) {
	const q = `
select id, created_at, updated_at, image_hash, engine, source,
       coalesce(chat_id, 0), recognized_text, has_full_text, category, hits
from notices
where image_hash = $1 and engine = $2`
	var n Notice
	err := r.DB.QueryRowContext(ctx, q, imageHash, engine).Scan(
		&n.ID, &n.CreatedAt, &n.UpdatedAt, &n.ImageHash, &n.Engine, &n.Source,
		&n.ChatID, &n.Text, &n.HasFullText, &n.Category, &n.Hits,
	)
	if err != nil {
		return nil, err
	}
	if maxAge > 0 && time.Since(n.UpdatedAt) > maxAge {
		return nil, ErrNotFound
	}
	return &n, nil
}

// Upsert stores a notice. A repeated (image_hash, engine) refreshes the row and bumps hits.
func (r *NoticeRepo) Upsert(ctx context.Context, n Notice) error {
	const q = `
insert into notices (
  image_hash, engine, source, chat_id, recognized_text, has_full_text, category
) values ($1, $2, $3, nullif($4::bigint, 0), $5, $6, $7)
on conflict (image_hash, engine) do update
set source = excluded.source,
    chat_id = coalesce(excluded.chat_id, notices.chat_id),
    recognized_text = excluded.recognized_text,
    has_full_text = excluded.has_full_text,
    category = excluded.category,
    hits = notices.hits + 1,
    updated_at = now()`
	_, err := r.DB.ExecContext(ctx, q,
		n.ImageHash, n.Engine, n.Source, n.ChatID, n.Text, n.HasFullText, n.Category,
	)
	return err
}

// CountByCategory reports how many images fell into each category.
func (r *NoticeRepo) CountByCategory(ctx context.Context) (map[string]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `select category, count(*) from notices group by category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			cat string
			n   int64
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		out[cat] = n
	}
	return out, rows.Err()
}

// PurgeOlderThan removes rows not touched for olderThan.
func (r *NoticeRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	res, err := r.DB.ExecContext(ctx, `delete from notices where updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
