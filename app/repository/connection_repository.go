package repository

import (
	"errors"

	"github.com/lightline-app/lightline/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// connectionRepository implements the ConnectionRepository interface
type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new connection repository instance
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

// Upsert creates the connection or updates status and handle of the existing
// record for the same (user, service) pair
func (r *connectionRepository) Upsert(conn *models.MessagingConnection) error {
	if !models.IsKnownConnectionService(conn.Service) {
		return errors.New("unknown connection service: " + conn.Service)
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "service"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "handle", "updated_at"}),
	}).Create(conn).Error
}

// GetByUserAndService retrieves a single connection, or (nil, nil) when the
// user never connected the service
func (r *connectionRepository) GetByUserAndService(userID uint, service string) (*models.MessagingConnection, error) {
	var conn models.MessagingConnection
	err := r.db.Where("user_id = ? AND service = ?", userID, service).First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// ListByUser retrieves all connections of a user
func (r *connectionRepository) ListByUser(userID uint) ([]models.MessagingConnection, error) {
	var conns []models.MessagingConnection
	err := r.db.Where("user_id = ?", userID).Order("service").Find(&conns).Error
	return conns, err
}

// Delete removes a connection
func (r *connectionRepository) Delete(userID uint, service string) error {
	return r.db.Where("user_id = ? AND service = ?", userID, service).Delete(&models.MessagingConnection{}).Error
}
