// Package model содержит доменные сущности сервиса начисления баллов.
package model

import "time"

// DefaultDescription подставляется, если описание начисления не передано.
const DefaultDescription = "Points added"

// MaxDescriptionLength — максимальная длина описания в символах (VARCHAR(255)).
const MaxDescriptionLength = 255

// PointEntry описывает одно начисление (или списание) баллов пользователю.
// Запись неизменяема после создания.
type PointEntry struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID      int64     `json:"userId" gorm:"column:user_id;not null;index:idx_points_user_created,priority:1"`
	Points      int64     `json:"points" gorm:"column:points;not null"`
	Description string    `json:"description" gorm:"column:description;size:255;not null;default:'Points added'"`
	CreatedAt   time.Time `json:"createdAt" gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3);autoCreateTime:false;index:idx_points_user_created,priority:2,sort:desc"`
}

// TableName задаёт имя таблицы для gorm.
func (PointEntry) TableName() string {
	return "points"
}

// NewPointEntry содержит данные для создания новой записи.
type NewPointEntry struct {
	UserID      int64
	Points      int64
	Description string
}

// PointSum — агрегат по пользователю в том виде, в котором его вернуло хранилище.
// Total равен nil, если у пользователя нет ни одной записи.
type PointSum struct {
	Total *int64
	Count int64
}

// PointTotal — итоговая сумма баллов пользователя.
type PointTotal struct {
	UserID           int64 `json:"userId"`
	TotalPoints      int64 `json:"totalPoints"`
	TransactionCount int64 `json:"transactionCount"`
}
