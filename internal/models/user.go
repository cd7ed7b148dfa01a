package models

// User — участник или оператор. Администрирование пользователей живёт во внешней системе,
// здесь только то, что нужно для сертификатов и уведомлений.
type User struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	TelegramID *int64 `db:"telegram_id" json:"telegram_id,omitempty"`
}
