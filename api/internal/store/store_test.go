package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notice-bot/api/internal/ocr"
)

func newMockRepo(t *testing.T) (*NoticeRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewNoticeRepo(db), mock
}

var noticeColumns = []string{
	"id", "created_at", "updated_at", "image_hash", "engine", "source",
	"chat_id", "recognized_text", "has_full_text", "category", "hits",
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "ocr:vision:abc123", cacheKey("vision", "abc123"))
}

func TestMigrate(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectExec("create table if not exists notices").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, r.Migrate(context.Background()))
}

func TestFindByHash(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		updated time.Time
		maxAge  time.Duration
		noRows  bool
		wantErr error
	}{
		{name: "fresh row", updated: now.Add(-time.Minute), maxAge: time.Hour},
		{name: "no age limit", updated: now.Add(-48 * time.Hour), maxAge: 0},
		{name: "older than max age", updated: now.Add(-2 * time.Hour), maxAge: time.Hour, wantErr: ErrNotFound},
		{name: "missing row", noRows: true, maxAge: time.Hour, wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newMockRepo(t)
			rows := sqlmock.NewRows(noticeColumns)
			if !tt.noRows {
				rows.AddRow(int64(1), tt.updated, tt.updated, "h1", "vision", "telegram",
					int64(7), "국세청 홈택스 안내", true, "TAX_RECEIPT", int64(3))
			}
			mock.ExpectQuery(regexp.QuoteMeta("from notices where image_hash = $1 and engine = $2")).
				WithArgs("h1", "vision").
				WillReturnRows(rows)

			n, err := r.FindByHash(context.Background(), "h1", "vision", tt.maxAge)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, n)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "국세청 홈택스 안내", n.Text)
			assert.Equal(t, "TAX_RECEIPT", n.Category)
			assert.Equal(t, int64(7), n.ChatID)
			assert.Equal(t, 3, n.Hits)
			assert.True(t, n.HasFullText)
		})
	}
}

func TestUpsert_BumpsHitsOnConflict(t *testing.T) {
	r, mock := newMockRepo(t)
	n := Notice{
		ImageHash: "h1", Engine: "vision", Source: "telegram", ChatID: 7,
		Text: "인증번호는 123456입니다", HasFullText: true, Category: "AUTH_MESSAGE",
	}
	for i := 0; i < 2; i++ {
		mock.ExpectExec(regexp.QuoteMeta("on conflict (image_hash, engine) do update")+".*"+
			regexp.QuoteMeta("hits = notices.hits + 1")).
			WithArgs("h1", "vision", "telegram", int64(7), n.Text, true, "AUTH_MESSAGE").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	require.NoError(t, r.Upsert(context.Background(), n))
	require.NoError(t, r.Upsert(context.Background(), n))
}

func TestUpsert_Error(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectExec("insert into notices").WillReturnError(errors.New("db down"))
	assert.EqualError(t, r.Upsert(context.Background(), Notice{ImageHash: "h1"}), "db down")
}

func TestCountByCategory(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		want    map[string]int64
		wantErr bool
	}{
		{
			name: "aggregates",
			rows: sqlmock.NewRows([]string{"category", "count"}).
				AddRow("TAX_RECEIPT", int64(3)).
				AddRow("AUTH_MESSAGE", int64(1)),
			want: map[string]int64{"TAX_RECEIPT": 3, "AUTH_MESSAGE": 1},
		},
		{
			name: "empty table",
			rows: sqlmock.NewRows([]string{"category", "count"}),
			want: map[string]int64{},
		},
		{
			name: "row error",
			rows: sqlmock.NewRows([]string{"category", "count"}).
				AddRow("TAX_RECEIPT", int64(3)).
				RowError(0, errors.New("broken row")),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newMockRepo(t)
			mock.ExpectQuery(regexp.QuoteMeta("select category, count(*) from notices group by category")).
				WillReturnRows(tt.rows)

			got, err := r.CountByCategory(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPurgeOlderThan(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("delete from notices where updated_at < $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := r.PurgeOlderThan(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPurgeOlderThan_RejectsNonPositive(t *testing.T) {
	r := NewNoticeRepo(nil)
	_, err := r.PurgeOlderThan(context.Background(), 0)
	assert.Error(t, err)
}

func newTestCache(t *testing.T, ttl time.Duration) (*TextCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTextCache(rdb, ttl), mr
}

func TestTextCache_Get(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		want    ocr.Result
		wantHit bool
	}{
		{name: "miss"},
		{
			name:    "hit",
			stored:  `{"text":"미납 요금 납부 요청","hasFullText":true}`,
			want:    ocr.Result{Text: "미납 요금 납부 요청", HasFullText: true},
			wantHit: true,
		},
		{name: "corrupt value", stored: `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mr := newTestCache(t, time.Hour)
			if tt.stored != "" {
				require.NoError(t, mr.Set(cacheKey("vision", "h1"), tt.stored))
			}

			got, hit, err := c.Get(context.Background(), "vision", "h1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantHit, hit)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextCache_SetUsesTTL(t *testing.T) {
	c, mr := newTestCache(t, 30*time.Minute)
	res := ocr.Result{Text: "환불 처리되었습니다", HasFullText: true}

	require.NoError(t, c.Set(context.Background(), "gemini", "h2", res))
	assert.Equal(t, 30*time.Minute, mr.TTL(cacheKey("gemini", "h2")))

	got, hit, err := c.Get(context.Background(), "gemini", "h2")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, res, got)

	mr.FastForward(31 * time.Minute)
	_, hit, err = c.Get(context.Background(), "gemini", "h2")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestTextCache_RedisError(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)
	mr.SetError("ERR cache unavailable")

	_, hit, err := c.Get(context.Background(), "vision", "h1")
	assert.Error(t, err)
	assert.False(t, hit)
	assert.Error(t, c.Ping(context.Background()))

	mr.SetError("")
	assert.NoError(t, c.Ping(context.Background()))
}
