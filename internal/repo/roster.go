package repo

import (
	"context"
	"database/sql"

	"trackline/internal/domain"
)

// Roster queries back the department-roster collaborator: the candidate pool
// memberships are validated against.

func (r Repo) UpsertPerson(ctx context.Context, p domain.Person) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO roster(user_id,name,department,title,active,created_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET name=excluded.name, department=excluded.department, title=excluded.title, active=excluded.active`,
		p.UserID, p.Name, p.Department, nullableStr(p.Title), boolInt(p.Active), p.CreatedAt)
	return err
}

func (r Repo) GetPerson(ctx context.Context, userID string) (domain.Person, error) {
	var p domain.Person
	var title sql.NullString
	var active int
	err := r.DB.QueryRowContext(ctx, `SELECT user_id,name,department,title,active,created_at FROM roster WHERE user_id=?`, userID).
		Scan(&p.UserID, &p.Name, &p.Department, &title, &active, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, domain.NotFoundError{Kind: "person", ID: userID}
	}
	if err != nil {
		return p, err
	}
	if title.Valid {
		p.Title = title.String
	}
	p.Active = active != 0
	return p, nil
}

// ListDepartment returns active roster entries for a department, the set the
// UI offers as membership candidates.
func (r Repo) ListDepartment(ctx context.Context, department string) ([]domain.Person, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id,name,department,title,active,created_at FROM roster WHERE department=? AND active=1 ORDER BY name`, department)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Person
	for rows.Next() {
		var p domain.Person
		var title sql.NullString
		var active int
		if err := rows.Scan(&p.UserID, &p.Name, &p.Department, &title, &active, &p.CreatedAt); err != nil {
			return nil, err
		}
		if title.Valid {
			p.Title = title.String
		}
		p.Active = active != 0
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) DeactivatePerson(ctx context.Context, userID string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE roster SET active=0 WHERE user_id=?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Kind: "person", ID: userID}
	}
	return nil
}

func nullableStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
