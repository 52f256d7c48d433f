package reservation

import (
	"context"
	"errors"
	"fmt"

	"ticketing/feature/reservation/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the narrow contract the reservation core needs from the durable
// store. The storage layer must enforce RequestID uniqueness.
type Store interface {
	FindConcert(ctx context.Context, id uint) (*models.Concert, error)
	FindMember(ctx context.Context, id uint) (*models.Member, error)
	Concerts(ctx context.Context) ([]models.Concert, error)
	SaveConcert(ctx context.Context, concert *models.Concert) error
	UpdateRemainingSeats(ctx context.Context, concertID uint, remaining int) error
	SaveReservation(ctx context.Context, r *models.Reservation) error
	SaveAll(ctx context.Context, rs []models.Reservation) error
	FindByRequestID(ctx context.Context, requestID string) (*models.Reservation, error)

	// Transaction runs fn against a store bound to one durable transaction.
	Transaction(ctx context.Context, fn func(Store) error) error
}

// GormStore implements Store on top of GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store backed by the given connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the schema for the domain entities.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&models.Concert{}, &models.Member{}, &models.Reservation{})
}

func (s *GormStore) FindConcert(ctx context.Context, id uint) (*models.Concert, error) {
	var c models.Concert
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("concert %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find concert %d: %w", id, err)
	}
	return &c, nil
}

func (s *GormStore) FindMember(ctx context.Context, id uint) (*models.Member, error) {
	var m models.Member
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("member %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find member %d: %w", id, err)
	}
	return &m, nil
}

func (s *GormStore) Concerts(ctx context.Context) ([]models.Concert, error) {
	var concerts []models.Concert
	if err := s.db.WithContext(ctx).Find(&concerts).Error; err != nil {
		return nil, fmt.Errorf("list concerts: %w", err)
	}
	return concerts, nil
}

func (s *GormStore) SaveConcert(ctx context.Context, concert *models.Concert) error {
	if err := s.db.WithContext(ctx).Save(concert).Error; err != nil {
		return fmt.Errorf("save concert %d: %w", concert.ID, err)
	}
	return nil
}

func (s *GormStore) UpdateRemainingSeats(ctx context.Context, concertID uint, remaining int) error {
	err := s.db.WithContext(ctx).
		Model(&models.Concert{}).
		Where("id = ?", concertID).
		Update("remaining_seats", remaining).Error
	if err != nil {
		return fmt.Errorf("update remaining seats for concert %d: %w", concertID, err)
	}
	return nil
}

func (s *GormStore) SaveReservation(ctx context.Context, r *models.Reservation) error {
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return fmt.Errorf("save reservation %s: %w", r.RequestID, err)
	}
	return nil
}

// SaveAll persists reservations in one batch write. A conflicting RequestID
// means the event was already processed; the duplicate row is skipped, which
// makes redelivery a no-op.
func (s *GormStore) SaveAll(ctx context.Context, rs []models.Reservation) error {
	if len(rs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			DoNothing: true,
		}).
		Create(&rs).Error
	if err != nil {
		return fmt.Errorf("save reservation batch (%d): %w", len(rs), err)
	}
	return nil
}

func (s *GormStore) FindByRequestID(ctx context.Context, requestID string) (*models.Reservation, error) {
	var r models.Reservation
	err := s.db.WithContext(ctx).Where("request_id = ?", requestID).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("reservation %s: %w", requestID, ErrNotFound)
		}
		return nil, fmt.Errorf("find reservation %s: %w", requestID, err)
	}
	return &r, nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// CreateConcert inserts a new concert. Used by the seed command.
func (s *GormStore) CreateConcert(ctx context.Context, concert *models.Concert) error {
	if err := s.db.WithContext(ctx).Create(concert).Error; err != nil {
		return fmt.Errorf("create concert: %w", err)
	}
	return nil
}

// CreateMember inserts a new member. Used by the seed command.
func (s *GormStore) CreateMember(ctx context.Context, member *models.Member) error {
	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}
