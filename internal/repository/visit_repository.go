package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/akabemail-hash/asutkosks/internal/model"
	"github.com/akabemail-hash/asutkosks/internal/stats"
)

var (
	// ErrProblemTypeRequired is returned when the visit type demands a problem type.
	ErrProblemTypeRequired = errors.New("problem_type_id is required for this visit type")
	// ErrProblemTypeNotAllowed is returned when a problem type is given for a visit type that takes none.
	ErrProblemTypeNotAllowed = errors.New("problem_type_id is not allowed for this visit type")
)

// VisitRepo encapsulates the `visits` table.
type VisitRepo struct {
	db *sql.DB
}

func NewVisitRepo(db *sql.DB) *VisitRepo {
	return &VisitRepo{db: db}
}

const visitDetailSelect = `SELECT v.id, v.kiosk_id, v.user_id,
       DATE_FORMAT(v.visit_date, '%Y-%m-%d'), TIME_FORMAT(v.visit_time, '%H:%i:%s'),
       v.visit_type_id, v.problem_type_id, COALESCE(v.description, ''), v.photos, v.created_at,
       k.kiosk_number, k.address, u.username, vt.name, pt.name
  FROM visits v
  JOIN kiosks k       ON k.id = v.kiosk_id
  JOIN users u        ON u.id = v.user_id
  JOIN visit_types vt ON vt.id = v.visit_type_id
  LEFT JOIN problem_types pt ON pt.id = v.problem_type_id`

func scanVisitDetail(row rowScanner) (model.VisitDetail, error) {
	var d model.VisitDetail
	var photos string
	err := row.Scan(&d.ID, &d.KioskID, &d.UserID, &d.VisitDate, &d.VisitTime,
		&d.VisitTypeID, &d.ProblemTypeID, &d.Description, &photos, &d.CreatedAt,
		&d.KioskNumber, &d.Address, &d.Username, &d.VisitTypeName, &d.ProblemTypeName)
	if err != nil {
		return model.VisitDetail{}, translate(err)
	}
	d.Photos = decodePhotos(photos)
	return d, nil
}

func decodePhotos(raw string) []string {
	var photos []string
	if err := json.Unmarshal([]byte(raw), &photos); err != nil || photos == nil {
		return []string{}
	}
	return photos
}

func encodePhotos(photos []string) string {
	if photos == nil {
		photos = []string{}
	}
	b, _ := json.Marshal(photos)
	return string(b)
}

func queryDetails(ctx context.Context, db *sql.DB, q string, args ...any) ([]model.VisitDetail, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.VisitDetail{}
	for rows.Next() {
		d, err := scanVisitDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// checkProblemType enforces the visit type's requires_problem_type flag.
func checkProblemType(ctx context.Context, tx *sql.Tx, visitTypeID uint64, problemTypeID *uint64) error {
	var requires bool
	err := tx.QueryRowContext(ctx,
		"SELECT requires_problem_type FROM visit_types WHERE id = ? FOR SHARE", visitTypeID).Scan(&requires)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidReference
	}
	if err != nil {
		return err
	}
	switch {
	case requires && problemTypeID == nil:
		return ErrProblemTypeRequired
	case !requires && problemTypeID != nil:
		return ErrProblemTypeNotAllowed
	}
	return nil
}

// Create validates the problem type against the visit type and inserts v in
// one transaction, setting v.ID.
func (r *VisitRepo) Create(ctx context.Context, v *model.Visit) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := checkProblemType(ctx, tx, v.VisitTypeID, v.ProblemTypeID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO visits
		    (kiosk_id, user_id, visit_date, visit_time, visit_type_id, problem_type_id, description, photos)
		    VALUES (?,?,?,?,?,?,?,?)`,
			v.KioskID, v.UserID, v.VisitDate, v.VisitTime, v.VisitTypeID, v.ProblemTypeID,
			v.Description, encodePhotos(v.Photos))
		if err != nil {
			return translate(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		v.ID = uint64(id)
		return nil
	})
}

// Update rewrites visit v.ID.  When replacePhotos is false the stored photos
// are kept.  It returns the photos that were replaced, if any.
func (r *VisitRepo) Update(ctx context.Context, v model.Visit, replacePhotos bool) ([]string, error) {
	var old []string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var raw string
		if err := tx.QueryRowContext(ctx, "SELECT photos FROM visits WHERE id = ? FOR UPDATE", v.ID).Scan(&raw); err != nil {
			return translate(err)
		}
		if err := checkProblemType(ctx, tx, v.VisitTypeID, v.ProblemTypeID); err != nil {
			return err
		}
		photos := raw
		if replacePhotos {
			old = decodePhotos(raw)
			photos = encodePhotos(v.Photos)
		}
		return affected(tx.ExecContext(ctx, `UPDATE visits
		    SET kiosk_id = ?, visit_date = ?, visit_time = ?, visit_type_id = ?, problem_type_id = ?,
		        description = ?, photos = ?
		  WHERE id = ?`,
			v.KioskID, v.VisitDate, v.VisitTime, v.VisitTypeID, v.ProblemTypeID, v.Description, photos, v.ID))
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

// Delete removes visit id and returns its photos.
func (r *VisitRepo) Delete(ctx context.Context, id uint64) ([]string, error) {
	var photos []string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var raw string
		if err := tx.QueryRowContext(ctx, "SELECT photos FROM visits WHERE id = ? FOR UPDATE", id).Scan(&raw); err != nil {
			return translate(err)
		}
		photos = decodePhotos(raw)
		return affected(tx.ExecContext(ctx, "DELETE FROM visits WHERE id = ?", id))
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}

func (r *VisitRepo) GetByID(ctx context.Context, id uint64) (model.VisitDetail, error) {
	return scanVisitDetail(r.db.QueryRowContext(ctx, visitDetailSelect+" WHERE v.id = ?", id))
}

// Report lists visits matching f, newest visit first.
func (r *VisitRepo) Report(ctx context.Context, f model.VisitReportFilter) ([]model.VisitDetail, error) {
	var conds []string
	var args []any
	if f.StartDate != "" {
		conds = append(conds, "v.visit_date >= ?")
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		conds = append(conds, "v.visit_date <= ?")
		args = append(args, f.EndDate)
	}
	if s := strings.TrimSpace(f.KioskNumber); s != "" {
		conds = append(conds, "k.kiosk_number LIKE ?")
		args = append(args, likePattern(s))
	}
	q := visitDetailSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY v.visit_date DESC, v.visit_time DESC, v.id DESC"
	return queryDetails(ctx, r.db, q, args...)
}

// ListByUser returns the user's own visits, most recently recorded first.
func (r *VisitRepo) ListByUser(ctx context.Context, userID uint64) ([]model.VisitDetail, error) {
	return queryDetails(ctx, r.db, visitDetailSelect+" WHERE v.user_id = ? ORDER BY v.created_at DESC, v.id DESC", userID)
}

// VisitRows feeds the stats aggregator.
func (r *VisitRepo) VisitRows(ctx context.Context, q stats.VisitQuery) ([]stats.VisitRow, error) {
	conds := []string{"visit_date >= ?"}
	args := []any{q.From}
	if q.To != "" {
		conds = append(conds, "visit_date <= ?")
		args = append(args, q.To)
	}
	if q.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *q.UserID)
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT kiosk_id, DATE_FORMAT(visit_date, '%Y-%m-%d') FROM visits WHERE "+strings.Join(conds, " AND "), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []stats.VisitRow
	for rows.Next() {
		var vr stats.VisitRow
		if err := rows.Scan(&vr.KioskID, &vr.VisitDate); err != nil {
			return nil, err
		}
		out = append(out, vr)
	}
	return out, rows.Err()
}

// StatsSource joins the kiosk and visit queries the aggregator reads.
type StatsSource struct {
	*KioskRepo
	*VisitRepo
}
