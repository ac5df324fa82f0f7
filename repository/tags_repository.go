package repository

import (
	"context"
	"database/sql"
)

// TagsRepository stores the per-user available-tag set: tags that show up
// in the picker even when no entry currently uses them.
type TagsRepository struct {
	db *sql.DB
}

func NewTagsRepository(db *sql.DB) *TagsRepository { return &TagsRepository{db: db} }

// EnsureAvailableTag inserts the tag for the user if absent. ON CONFLICT
// DO NOTHING keyed by (user_id, name) makes repeated and concurrent calls
// with the same tag safe.
func (r *TagsRepository) EnsureAvailableTag(ctx context.Context, userID int, name string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO available_tag (user_id, name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, name) DO NOTHING`, userID, name)
	return err
}

// ListAvailableTags returns the user's explicitly saved tags, sorted.
// The union with built-in defaults and in-use entry tags happens in the
// store; this is only the persisted part.
func (r *TagsRepository) ListAvailableTags(ctx context.Context, userID int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name FROM available_tag
		WHERE user_id = $1
		ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
