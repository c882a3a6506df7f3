package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"trackline/internal/domain"
)

// Repo reads and writes container documents. A container is persisted whole
// as one JSON document; the version column is the optimistic-concurrency
// token enforced on every save.
type Repo struct {
	DB *sql.DB
}

func marshalDoc(c domain.Container) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal container %s: %w", c.ID, err)
	}
	return string(data), nil
}

func unmarshalDoc(doc string, version int64) (domain.Container, error) {
	var c domain.Container
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return c, fmt.Errorf("unmarshal container: %w", err)
	}
	c.Version = version
	return c, nil
}

func (r Repo) InsertContainer(ctx context.Context, tx *sql.Tx, c domain.Container) error {
	c.Version = 1
	doc, err := marshalDoc(c)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO containers(id,number,kind,department,status,health,version,doc_json,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Number, c.Kind, c.Department, c.Status, c.Health, c.Version, doc, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetContainer(ctx context.Context, id string) (domain.Container, error) {
	return scanContainer(r.DB.QueryRowContext(ctx, `SELECT doc_json, version FROM containers WHERE id=?`, id), id)
}

func (r Repo) GetContainerTx(ctx context.Context, tx *sql.Tx, id string) (domain.Container, error) {
	return scanContainer(tx.QueryRowContext(ctx, `SELECT doc_json, version FROM containers WHERE id=?`, id), id)
}

func scanContainer(row *sql.Row, id string) (domain.Container, error) {
	var doc string
	var version int64
	err := row.Scan(&doc, &version)
	if err == sql.ErrNoRows {
		return domain.Container{}, domain.NotFoundError{Kind: "container", ID: id}
	}
	if err != nil {
		return domain.Container{}, err
	}
	return unmarshalDoc(doc, version)
}

// SaveContainer replaces the stored document if and only if nobody saved in
// between: the update is keyed on the version the caller loaded. The returned
// container carries the bumped version.
func (r Repo) SaveContainer(ctx context.Context, tx *sql.Tx, c domain.Container) (domain.Container, error) {
	loaded := c.Version
	c.Version = loaded + 1
	doc, err := marshalDoc(c)
	if err != nil {
		return c, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE containers SET status=?, health=?, version=?, doc_json=?, updated_at=? WHERE id=? AND version=?`,
		c.Status, c.Health, c.Version, doc, c.UpdatedAt, c.ID, loaded)
	if err != nil {
		return c, err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		var exists int
		if scanErr := tx.QueryRowContext(ctx, `SELECT 1 FROM containers WHERE id=?`, c.ID).Scan(&exists); scanErr == sql.ErrNoRows {
			return c, domain.NotFoundError{Kind: "container", ID: c.ID}
		}
		return c, domain.ConflictError{Reason: fmt.Sprintf("container %s modified concurrently", c.ID)}
	}
	return c, nil
}

// NextNumber allocates the next sequential number for a container kind,
// inside the creation transaction so numbers never collide or skip.
func (r Repo) NextNumber(ctx context.Context, tx *sql.Tx, kind string) (int, error) {
	if _, err := tx.ExecContext(ctx, `INSERT INTO counters(kind,value) VALUES (?,1)
ON CONFLICT(kind) DO UPDATE SET value=value+1`, kind); err != nil {
		return 0, err
	}
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT value FROM counters WHERE kind=?`, kind).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ContainerFilters narrow ListContainers; zero values match everything.
type ContainerFilters struct {
	Kind       string
	Department string
	Status     string
	Health     string
	Limit      int
}

func (r Repo) ListContainers(ctx context.Context, f ContainerFilters) ([]domain.Container, error) {
	var clauses []string
	var args []any
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	if f.Department != "" {
		clauses = append(clauses, "department=?")
		args = append(args, f.Department)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Health != "" {
		clauses = append(clauses, "health=?")
		args = append(args, f.Health)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT doc_json, version FROM containers ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Container
	for rows.Next() {
		var doc string
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, err
		}
		c, err := unmarshalDoc(doc, version)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// EventsAfter returns change-log rows with IDs greater than cursor, ascending.
func (r Repo) EventsAfter(ctx context.Context, containerID string, cursor int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"container_id=?"}
	args := []any{containerID}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	query := `SELECT id,ts,type,container_id,COALESCE(work_item_id,''),actor_id,payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// LatestEvents returns the most recent change-log rows, newest first.
func (r Repo) LatestEvents(ctx context.Context, containerID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if containerID != "" {
		clauses = append(clauses, "container_id=?")
		args = append(args, containerID)
	}
	query := `SELECT id,ts,type,container_id,COALESCE(work_item_id,''),actor_id,payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ContainerID, &e.WorkItemID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
