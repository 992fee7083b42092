package sqlite

import (
	"context"
	"database/sql"

	"github.com/agrolink/agrolink/internal/api/domain"
)

type contactsRepo struct {
	db *sql.DB
}

func (r *contactsRepo) CreateContact(ctx context.Context, c domain.Contact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, email, subject, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Subject, c.Message, c.CreatedAt)
	return err
}
