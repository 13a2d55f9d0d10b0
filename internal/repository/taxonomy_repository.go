package repository

import (
	"context"
	"database/sql"

	"github.com/akabemail-hash/asutkosks/internal/model"
)

// VisitTypeRepo encapsulates the `visit_types` table.
type VisitTypeRepo struct{ db *sql.DB }

func NewVisitTypeRepo(db *sql.DB) *VisitTypeRepo { return &VisitTypeRepo{db: db} }

func (r *VisitTypeRepo) List(ctx context.Context) ([]model.VisitType, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, requires_problem_type, created_at FROM visit_types ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.VisitType{}
	for rows.Next() {
		var vt model.VisitType
		if err := rows.Scan(&vt.ID, &vt.Name, &vt.RequiresProblemType, &vt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, rows.Err()
}

func (r *VisitTypeRepo) Create(ctx context.Context, vt *model.VisitType) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO visit_types (name, requires_problem_type) VALUES (?, ?)", vt.Name, vt.RequiresProblemType)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	return translate(r.db.QueryRowContext(ctx,
		"SELECT id, name, requires_problem_type, created_at FROM visit_types WHERE id = ?", id).
		Scan(&vt.ID, &vt.Name, &vt.RequiresProblemType, &vt.CreatedAt))
}

func (r *VisitTypeRepo) Update(ctx context.Context, vt model.VisitType) error {
	return affected(r.db.ExecContext(ctx,
		"UPDATE visit_types SET name = ?, requires_problem_type = ? WHERE id = ?", vt.Name, vt.RequiresProblemType, vt.ID))
}

// Delete fails with ErrConflict while visits still use the type.
func (r *VisitTypeRepo) Delete(ctx context.Context, id uint64) error {
	return affected(r.db.ExecContext(ctx, "DELETE FROM visit_types WHERE id = ?", id))
}

// ProblemTypeRepo encapsulates the `problem_types` table.
type ProblemTypeRepo struct{ db *sql.DB }

func NewProblemTypeRepo(db *sql.DB) *ProblemTypeRepo { return &ProblemTypeRepo{db: db} }

func (r *ProblemTypeRepo) List(ctx context.Context) ([]model.ProblemType, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, created_at FROM problem_types ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ProblemType{}
	for rows.Next() {
		var pt model.ProblemType
		if err := rows.Scan(&pt.ID, &pt.Name, &pt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

func (r *ProblemTypeRepo) Create(ctx context.Context, pt *model.ProblemType) error {
	res, err := r.db.ExecContext(ctx, "INSERT INTO problem_types (name) VALUES (?)", pt.Name)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	return translate(r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM problem_types WHERE id = ?", id).Scan(&pt.ID, &pt.Name, &pt.CreatedAt))
}

func (r *ProblemTypeRepo) Update(ctx context.Context, pt model.ProblemType) error {
	return affected(r.db.ExecContext(ctx, "UPDATE problem_types SET name = ? WHERE id = ?", pt.Name, pt.ID))
}

func (r *ProblemTypeRepo) Delete(ctx context.Context, id uint64) error {
	return affected(r.db.ExecContext(ctx, "DELETE FROM problem_types WHERE id = ?", id))
}
