package repository

import (
	"context"

	"pathwaymed-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationRepository handles database operations for notifications and
// per-user read/hidden marks
type NotificationRepository struct {
	db *pgxpool.Pool
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create creates a new notification
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (target, user_id, title, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return r.db.QueryRow(ctx, query, n.Target, n.UserID, n.Title, n.Body).
		Scan(&n.ID, &n.CreatedAt)
}

// visibleFilter selects notifications addressed to the user that the user
// has not hidden
const visibleFilter = `
	(n.target = 'all' OR (n.target = 'user' AND n.user_id = $1))
	AND NOT COALESCE(m.hidden, false)`

// ListForUser retrieves the user's visible notifications, newest first
func (r *NotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*models.Notification, int, error) {
	query := `
		SELECT n.id, n.target, n.user_id, n.title, n.body, n.created_at,
			COALESCE(m.read, false)
		FROM notifications n
		LEFT JOIN notification_marks m
			ON m.notification_id = n.id AND m.user_id = $1
		WHERE ` + visibleFilter

	if unreadOnly {
		query += ` AND NOT COALESCE(m.read, false)`
	}

	query += `
		ORDER BY n.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		err := rows.Scan(&n.ID, &n.Target, &n.UserID, &n.Title, &n.Body, &n.CreatedAt, &n.Read)
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `
		SELECT COUNT(*)
		FROM notifications n
		LEFT JOIN notification_marks m
			ON m.notification_id = n.id AND m.user_id = $1
		WHERE ` + visibleFilter

	var total int
	if err := r.db.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

// UnreadCount returns the number of visible, unread notifications
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications n
		LEFT JOIN notification_marks m
			ON m.notification_id = n.id AND m.user_id = $1
		WHERE ` + visibleFilter + `
			AND NOT COALESCE(m.read, false)`

	var count int
	err := r.db.QueryRow(ctx, query, userID).Scan(&count)
	return count, err
}

// MarkRead records that a user has read a notification
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	query := `
		INSERT INTO notification_marks (notification_id, user_id, read)
		VALUES ($1, $2, true)
		ON CONFLICT (notification_id, user_id)
		DO UPDATE SET read = true`

	_, err := r.db.Exec(ctx, query, notificationID, userID)
	return err
}

// Hide removes a notification from a user's view without deleting it
func (r *NotificationRepository) Hide(ctx context.Context, notificationID, userID uuid.UUID) error {
	query := `
		INSERT INTO notification_marks (notification_id, user_id, hidden)
		VALUES ($1, $2, true)
		ON CONFLICT (notification_id, user_id)
		DO UPDATE SET hidden = true`

	_, err := r.db.Exec(ctx, query, notificationID, userID)
	return err
}
