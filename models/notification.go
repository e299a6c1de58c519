package models

import "time"

// Notification is an in-app message shown to a back-office user
type Notification struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Kind      string    `db:"kind"` // info, success, error
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}
