// Package service реализует бизнес-логику сервиса начисления баллов.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mmeshcher/point-service/internal/fault"
	"github.com/mmeshcher/point-service/internal/model"
	"github.com/mmeshcher/point-service/internal/repository"
	"github.com/mmeshcher/point-service/internal/validation"
)

var (
	// ErrInvalidInput возвращается при некорректных или отсутствующих входных данных.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound возвращается, если у пользователя нет ни одной записи.
	ErrNotFound = errors.New("not found")
	// ErrInjectedFailure возвращается политикой искусственных отказов.
	ErrInjectedFailure = errors.New("injected failure")
	// ErrDescriptionTooLong возвращается, если описание не помещается в хранилище.
	// Является частным случаем ErrInvalidInput.
	ErrDescriptionTooLong = fmt.Errorf("%w: description is too long", ErrInvalidInput)
)

const publishTimeout = 2 * time.Second

// Repository описывает контракт доступа к журналу начислений.
type Repository interface {
	Close() error
	ListAll(ctx context.Context) ([]model.PointEntry, error)
	FindByUser(ctx context.Context, userID int64) ([]model.PointEntry, error)
	SumByUser(ctx context.Context, userID int64) (model.PointSum, error)
	Insert(ctx context.Context, entry model.NewPointEntry) (model.PointEntry, error)
}

// Publisher публикует события о новых записях.
type Publisher interface {
	PublishPointsAdded(ctx context.Context, entry model.PointEntry) error
	Close() error
}

// AddRequest — входные данные операции добавления баллов.
// Указатели позволяют отличить отсутствующее поле от нулевого значения.
type AddRequest struct {
	UserID      *int64
	Points      *int64
	Description string
}

// Service содержит бизнес-логику журнала начислений.
type Service struct {
	repo      Repository
	injector  fault.Injector
	publisher Publisher
	logger    *zap.Logger

	wg sync.WaitGroup
}

// NewService создаёт сервис. Пустые injector, publisher и logger заменяются безопасными значениями.
func NewService(repo Repository, injector fault.Injector, publisher Publisher, logger *zap.Logger) *Service {
	if injector == nil {
		injector = fault.Never{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		injector:  injector,
		publisher: publisher,
		logger:    logger,
	}
}

// Close дожидается фоновых публикаций и закрывает ресурсы сервиса.
func (s *Service) Close() error {
	s.wg.Wait()

	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.repo != nil {
		errs = append(errs, s.repo.Close())
	}
	return errors.Join(errs...)
}

// List возвращает все записи журнала, от новых к старым.
func (s *Service) List(ctx context.Context) ([]model.PointEntry, error) {
	s.logger.Debug("fetching all points")

	entries, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logStoreError("fetch all points failed", err)
		return nil, err
	}

	s.logger.Info("fetched all points", zap.Int("count", len(entries)))
	return entries, nil
}

// GetLatestByUser возвращает последнюю запись пользователя.
func (s *Service) GetLatestByUser(ctx context.Context, rawUserID string) (*model.PointEntry, error) {
	userID, err := validation.ParseUserID(rawUserID)
	if err != nil {
		s.logger.Warn("invalid user ID provided", zap.String("userID", rawUserID))
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	s.logger.Debug("fetching latest points entry", zap.Int64("userID", userID))

	entries, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		s.logStoreError("fetch user points failed", err, zap.Int64("userID", userID))
		return nil, err
	}

	if len(entries) == 0 {
		s.logger.Warn("points not found for user", zap.Int64("userID", userID))
		return nil, fmt.Errorf("%w: no points for user %d", ErrNotFound, userID)
	}

	latest := entries[0]
	s.logger.Info("fetched latest points entry", zap.Int64("userID", userID), zap.Int64("id", latest.ID))
	return &latest, nil
}

// GetTotalByUser возвращает сумму баллов и количество записей пользователя.
// Проверка искусственного отказа выполняется до валидации и обращения к хранилищу.
func (s *Service) GetTotalByUser(ctx context.Context, rawUserID string) (*model.PointTotal, error) {
	if s.injector.ShouldInject() {
		s.logger.Error("simulated failure fetching total points", zap.String("userID", rawUserID))
		return nil, ErrInjectedFailure
	}

	userID, err := validation.ParseUserID(rawUserID)
	if err != nil {
		s.logger.Warn("invalid user ID provided", zap.String("userID", rawUserID))
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	s.logger.Debug("calculating total points", zap.Int64("userID", userID))

	sum, err := s.repo.SumByUser(ctx, userID)
	if err != nil {
		s.logStoreError("calculate total points failed", err, zap.Int64("userID", userID))
		return nil, err
	}

	total := &model.PointTotal{UserID: userID}

	switch {
	case sum.Total == nil && sum.Count == 0:
		s.logger.Info("no points found for user", zap.Int64("userID", userID))
		return total, nil
	case sum.Total == nil:
		err := fmt.Errorf("%w: sum is null for %d rows", repository.ErrStoreUnavailable, sum.Count)
		s.logger.Error("inconsistent aggregate", zap.Error(err), zap.Int64("userID", userID))
		return nil, err
	}

	total.TotalPoints = *sum.Total
	total.TransactionCount = sum.Count

	s.logger.Info("calculated total points",
		zap.Int64("userID", userID),
		zap.Int64("totalPoints", total.TotalPoints),
		zap.Int64("transactionCount", total.TransactionCount),
	)
	return total, nil
}

// Add добавляет запись в журнал. Повторный вызов с теми же данными создаёт новую запись.
func (s *Service) Add(ctx context.Context, req AddRequest) (*model.PointEntry, error) {
	if req.UserID == nil || *req.UserID == 0 || req.Points == nil {
		s.logger.Warn("missing required fields: userId or points")
		return nil, fmt.Errorf("%w: userId and points are required", ErrInvalidInput)
	}

	entry := model.NewPointEntry{
		UserID:      *req.UserID,
		Points:      *req.Points,
		Description: req.Description,
	}
	if entry.Description == "" {
		entry.Description = model.DefaultDescription
	}
	if utf8.RuneCountInString(entry.Description) > model.MaxDescriptionLength {
		s.logger.Warn("description is too long",
			zap.Int64("userID", entry.UserID),
			zap.Int("length", utf8.RuneCountInString(entry.Description)),
		)
		return nil, ErrDescriptionTooLong
	}

	s.logger.Debug("adding points",
		zap.Int64("userID", entry.UserID),
		zap.Int64("points", entry.Points),
		zap.String("description", entry.Description),
	)

	created, err := s.repo.Insert(ctx, entry)
	if err != nil {
		s.logStoreError("add points failed", err, zap.Int64("userID", entry.UserID))
		return nil, err
	}

	s.logger.Info("added points",
		zap.Int64("userID", created.UserID),
		zap.Int64("id", created.ID),
		zap.Int64("points", created.Points),
	)

	s.publish(ctx, created)

	return &created, nil
}

func (s *Service) publish(ctx context.Context, entry model.PointEntry) {
	if s.publisher == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := s.publisher.PublishPointsAdded(pubCtx, entry); err != nil {
			s.logger.Warn("publish points added event failed", zap.Error(err), zap.Int64("id", entry.ID))
		}
	}()
}

func (s *Service) logStoreError(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err), zap.Bool("transient", repository.IsTransient(err)))
	s.logger.Error(msg, fields...)
}
