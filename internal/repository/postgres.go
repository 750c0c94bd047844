// Package repository содержит адаптеры хранилища журнала начислений баллов.
package repository

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/point-service/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к журналу начислений в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт пул соединений и применяет миграции схемы.
// maxConns ограничивает размер пула; значение <= 0 оставляет значение pgxpool по умолчанию.
func NewPostgresRepository(dsn string, maxConns int32) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// ListAll возвращает все записи, от новых к старым.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]model.PointEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, points, description, created_at
		 FROM points
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, newStoreError("list points", err)
	}
	defer rows.Close()

	entries := make([]model.PointEntry, 0)
	for rows.Next() {
		var e model.PointEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Points, &e.Description, &e.CreatedAt); err != nil {
			return nil, newStoreError("scan point", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, newStoreError("list points", err)
	}

	return entries, nil
}

// FindByUser возвращает записи пользователя, от новых к старым.
func (r *PostgresRepository) FindByUser(ctx context.Context, userID int64) ([]model.PointEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, points, description, created_at
		 FROM points
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, newStoreError("select user points", err)
	}
	defer rows.Close()

	var entries []model.PointEntry
	for rows.Next() {
		var e model.PointEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Points, &e.Description, &e.CreatedAt); err != nil {
			return nil, newStoreError("scan point", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, newStoreError("select user points", err)
	}

	return entries, nil
}

// SumByUser возвращает сумму и количество записей пользователя.
// Total остаётся nil, если записей нет.
func (r *PostgresRepository) SumByUser(ctx context.Context, userID int64) (model.PointSum, error) {
	var sum model.PointSum
	err := r.pool.QueryRow(ctx,
		`SELECT SUM(points)::BIGINT, COUNT(*)
		 FROM points
		 WHERE user_id = $1`,
		userID,
	).Scan(&sum.Total, &sum.Count)
	if err != nil {
		return model.PointSum{}, newStoreError("sum user points", err)
	}

	return sum, nil
}

// Insert добавляет запись и возвращает её с присвоенными хранилищем id и created_at.
func (r *PostgresRepository) Insert(ctx context.Context, entry model.NewPointEntry) (model.PointEntry, error) {
	created := model.PointEntry{
		UserID:      entry.UserID,
		Points:      entry.Points,
		Description: entry.Description,
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO points (user_id, points, description) VALUES ($1, $2, $3) RETURNING id, created_at`,
		entry.UserID, entry.Points, entry.Description,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return model.PointEntry{}, newStoreError("insert point", err)
	}

	return created, nil
}
