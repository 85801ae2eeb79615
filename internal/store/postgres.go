package store

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// Migrate creates the history table. Dev helper, safe to run repeatedly.
func (p *Postgres) Migrate() error {
    _, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS quotes (
        id UUID PRIMARY KEY,
        request_id TEXT NOT NULL,
        company TEXT NOT NULL,
        from_city TEXT NOT NULL,
        to_city TEXT NOT NULL,
        weight DOUBLE PRECISION NOT NULL DEFAULT 0,
        volume DOUBLE PRECISION NOT NULL DEFAULT 0,
        price DOUBLE PRECISION NOT NULL DEFAULT 0,
        days INT NOT NULL DEFAULT 0,
        error TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`)
    return err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) SaveQuote(ctx context.Context, rec QuoteRecord) error {
    id := rec.ID
    if id == "" { id = uuid.New().String() }
    created := rec.CreatedAt
    if created.IsZero() { created = time.Now().UTC() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO quotes (id, request_id, company, from_city, to_city, weight, volume, price, days, error, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
        id, rec.RequestID, rec.Company, rec.FromCity, rec.ToCity, rec.Weight, rec.Volume, rec.Price, rec.Days, nullIfEmpty(rec.Error), created)
    return err
}

func (p *Postgres) ListQuotes(ctx context.Context, company, cursor string, limit int) ([]QuoteRecord, string, error) {
    if limit <= 0 { limit = 100 }
    args := []any{}
    q := `SELECT id::text, request_id, company, from_city, to_city, weight, volume, price, days, COALESCE(error,''), created_at FROM quotes`
    where := ""
    if company != "" {
        args = append(args, company)
        where = ` WHERE company=$1`
    }
    if cursor != "" {
        var cursorAt time.Time
        cq := `SELECT created_at FROM quotes WHERE id::text=$1`
        if err := p.db.QueryRowContext(ctx, cq, cursor).Scan(&cursorAt); err != nil {
            if errors.Is(err, sql.ErrNoRows) { return nil, "", ErrNotFound }
            return nil, "", err
        }
        args = append(args, cursorAt)
        if where == "" {
            where = ` WHERE created_at < $1`
        } else {
            where += ` AND created_at < $2`
        }
    }
    args = append(args, limit+1)
    q += where + fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []QuoteRecord{}
    for rows.Next() {
        var r QuoteRecord
        if err := rows.Scan(&r.ID, &r.RequestID, &r.Company, &r.FromCity, &r.ToCity, &r.Weight, &r.Volume, &r.Price, &r.Days, &r.Error, &r.CreatedAt); err != nil {
            return nil, "", err
        }
        out = append(out, r)
    }
    next := ""
    if len(out) > limit {
        out = out[:limit]
        next = out[len(out)-1].ID
    }
    return out, next, rows.Err()
}

func nullIfEmpty(s string) any {
    if s == "" { return nil }
    return s
}
