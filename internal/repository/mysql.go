package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mmeshcher/point-service/internal/model"
)

// MySQLRepository предоставляет доступ к журналу начислений в MySQL.
type MySQLRepository struct {
	db *gorm.DB
}

// MySQLDSN собирает DSN драйвера go-sql-driver/mysql.
func MySQLDSN(host string, port int, user, password, dbName string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		user, password, host, port, dbName)
}

// NewMySQLRepository открывает пул соединений и создаёт таблицу points при необходимости.
func NewMySQLRepository(dsn string, maxConns int) (*MySQLRepository, error) {
	db, err := openGorm(mysql.Open(dsn))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql DB: %w", err)
	}

	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
		sqlDB.SetMaxIdleConns(maxConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&model.PointEntry{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &MySQLRepository{db: db}, nil
}

func openGorm(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Close закрывает пул соединений с БД.
func (r *MySQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListAll возвращает все записи, от новых к старым.
func (r *MySQLRepository) ListAll(ctx context.Context) ([]model.PointEntry, error) {
	entries := make([]model.PointEntry, 0)
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, newStoreError("list points", err)
	}
	return entries, nil
}

// FindByUser возвращает записи пользователя, от новых к старым.
func (r *MySQLRepository) FindByUser(ctx context.Context, userID int64) ([]model.PointEntry, error) {
	var entries []model.PointEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, newStoreError("select user points", err)
	}
	return entries, nil
}

// SumByUser возвращает сумму и количество записей пользователя.
// Total остаётся nil, если записей нет.
func (r *MySQLRepository) SumByUser(ctx context.Context, userID int64) (model.PointSum, error) {
	var row struct {
		Total *int64
		Count int64
	}
	err := r.db.WithContext(ctx).
		Raw(`SELECT CAST(SUM(points) AS SIGNED) AS total, COUNT(*) AS count FROM points WHERE user_id = ?`, userID).
		Scan(&row).Error
	if err != nil {
		return model.PointSum{}, newStoreError("sum user points", err)
	}
	return model.PointSum{Total: row.Total, Count: row.Count}, nil
}

// Insert добавляет запись и перечитывает её, чтобы вернуть id и created_at,
// присвоенные хранилищем.
func (r *MySQLRepository) Insert(ctx context.Context, entry model.NewPointEntry) (model.PointEntry, error) {
	var stored model.PointEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created := model.PointEntry{
			UserID:      entry.UserID,
			Points:      entry.Points,
			Description: entry.Description,
		}
		if err := tx.Omit("created_at").Create(&created).Error; err != nil {
			return err
		}
		return tx.First(&stored, created.ID).Error
	})
	if err != nil {
		return model.PointEntry{}, newStoreError("insert point", err)
	}
	return stored, nil
}
