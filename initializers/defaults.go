package initializers

import (
	"database/sql"

	"moodweaver-api/models"
)

// InitDefaults is called once on application start to ensure the built-in
// default tags exist in the shared tag table, so entry-tag joins and the
// tag picker work from the first request.
func InitDefaults(db *sql.DB) error {
	for _, name := range models.DefaultTags {
		if _, err := ensureTag(db, name); err != nil {
			return err
		}
	}
	return nil
}

func ensureTag(db *sql.DB, name string) (int, error) {
	var id int
	err := db.QueryRow("SELECT id FROM tag WHERE name = $1", name).Scan(&id)
	if err == sql.ErrNoRows {
		err = db.QueryRow("INSERT INTO tag (name) VALUES ($1) RETURNING id", name).Scan(&id)
		if err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}
	return id, nil
}
