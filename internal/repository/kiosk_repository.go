package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/akabemail-hash/asutkosks/internal/model"
)

// KioskRepo encapsulates all queries on the `kiosks` table.
type KioskRepo struct {
	db *sql.DB
}

func NewKioskRepo(db *sql.DB) *KioskRepo {
	return &KioskRepo{db: db}
}

const kioskColumns = `id, kiosk_number, supervisor, assigned_user_id, mobile_number, address, shelf,
       is_active, latitude, longitude, created_at`

func scanKiosk(row rowScanner) (model.Kiosk, error) {
	var k model.Kiosk
	err := row.Scan(&k.ID, &k.KioskNumber, &k.Supervisor, &k.AssignedUserID, &k.MobileNumber,
		&k.Address, &k.Shelf, &k.IsActive, &k.Latitude, &k.Longitude, &k.CreatedAt)
	if err != nil {
		return model.Kiosk{}, translate(err)
	}
	return k, nil
}

// likePattern escapes LIKE metacharacters and wraps s for a substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func kioskWhere(f model.KioskFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(col, v string) {
		if v = strings.TrimSpace(v); v != "" {
			conds = append(conds, col+" LIKE ?")
			args = append(args, likePattern(v))
		}
	}
	// the column collation is case-insensitive, so LIKE matches any case
	add("kiosk_number", f.KioskNumber)
	add("address", f.Address)
	add("supervisor", f.Supervisor)
	add("mobile_number", f.MobileNumber)
	add("shelf", f.Shelf)
	if f.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *f.IsActive)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of kiosks matching f, newest first, and the total
// number of matches.  f.Limit <= 0 returns every match.
func (r *KioskRepo) List(ctx context.Context, f model.KioskFilter) ([]model.Kiosk, int, error) {
	where, args := kioskWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kiosks"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + kioskColumns + " FROM kiosks" + where + " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		page := max(f.Page, 1)
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, (page-1)*f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.Kiosk{}
	for rows.Next() {
		k, err := scanKiosk(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *KioskRepo) GetByID(ctx context.Context, id uint64) (model.Kiosk, error) {
	return scanKiosk(r.db.QueryRowContext(ctx, "SELECT "+kioskColumns+" FROM kiosks WHERE id = ?", id))
}

// resolveSupervisor returns the id of the user whose username equals the
// supervisor text exactly, or nil.
func resolveSupervisor(ctx context.Context, tx *sql.Tx, supervisor *string) (*uint64, error) {
	if supervisor == nil || strings.TrimSpace(*supervisor) == "" {
		return nil, nil
	}
	var id uint64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM users WHERE username COLLATE utf8mb4_bin = ? LIMIT 1",
		strings.TrimSpace(*supervisor)).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Create inserts k, linking it to its supervisor's account when one matches,
// and reloads the stored row into k.
func (r *KioskRepo) Create(ctx context.Context, k *model.Kiosk) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if k.AssignedUserID == nil {
			uid, err := resolveSupervisor(ctx, tx, k.Supervisor)
			if err != nil {
				return err
			}
			k.AssignedUserID = uid
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO kiosks
		    (kiosk_number, supervisor, assigned_user_id, mobile_number, address, shelf, is_active, latitude, longitude)
		    VALUES (?,?,?,?,?,?,?,?,?)`,
			k.KioskNumber, k.Supervisor, k.AssignedUserID, k.MobileNumber, k.Address, k.Shelf,
			k.IsActive, k.Latitude, k.Longitude)
		if err != nil {
			return translate(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		created, err := scanKiosk(tx.QueryRowContext(ctx, "SELECT "+kioskColumns+" FROM kiosks WHERE id = ?", id))
		if err != nil {
			return err
		}
		*k = created
		return nil
	})
}

// Update replaces every editable column of kiosk k.ID.
func (r *KioskRepo) Update(ctx context.Context, k model.Kiosk) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if k.AssignedUserID == nil {
			uid, err := resolveSupervisor(ctx, tx, k.Supervisor)
			if err != nil {
				return err
			}
			k.AssignedUserID = uid
		}
		return affected(tx.ExecContext(ctx, `UPDATE kiosks
		    SET kiosk_number = ?, supervisor = ?, assigned_user_id = ?, mobile_number = ?, address = ?,
		        shelf = ?, is_active = ?, latitude = ?, longitude = ?
		  WHERE id = ?`,
			k.KioskNumber, k.Supervisor, k.AssignedUserID, k.MobileNumber, k.Address, k.Shelf,
			k.IsActive, k.Latitude, k.Longitude, k.ID))
	})
}

// SetCoordinates caches a geocoding result on the kiosk.
func (r *KioskRepo) SetCoordinates(ctx context.Context, id uint64, lat, lon float64) error {
	return affected(r.db.ExecContext(ctx, "UPDATE kiosks SET latitude = ?, longitude = ? WHERE id = ?", lat, lon, id))
}

// Delete removes kiosk id.  Kiosks with recorded visits return ErrConflict.
func (r *KioskRepo) Delete(ctx context.Context, id uint64) error {
	return affected(r.db.ExecContext(ctx, "DELETE FROM kiosks WHERE id = ?", id))
}

// DeleteAll removes every kiosk in one statement.
func (r *KioskRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM kiosks")
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}

// Import inserts kiosks in one transaction.  Rows whose kiosk_number already
// exists (in the table or earlier in the batch) are skipped; any other failed
// row aborts the whole import.  It returns the number of rows inserted.
func (r *KioskRepo) Import(ctx context.Context, kiosks []model.Kiosk) (int, error) {
	inserted := 0
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		users, err := usernameIndex(ctx, tx)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO kiosks
		    (kiosk_number, supervisor, assigned_user_id, mobile_number, address, shelf, is_active, latitude, longitude)
		    VALUES (?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, k := range kiosks {
			if k.AssignedUserID == nil && k.Supervisor != nil {
				if id, ok := users[strings.TrimSpace(*k.Supervisor)]; ok {
					k.AssignedUserID = &id
				}
			}
			// a failed statement rolls back alone, so duplicates can be skipped
			_, err := stmt.ExecContext(ctx, k.KioskNumber, k.Supervisor, k.AssignedUserID, k.MobileNumber,
				k.Address, k.Shelf, k.IsActive, k.Latitude, k.Longitude)
			if isDuplicate(err) {
				continue
			}
			if err != nil {
				return translate(err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func usernameIndex(ctx context.Context, tx *sql.Tx) (map[string]uint64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id, username FROM users")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	idx := make(map[string]uint64)
	for rows.Next() {
		var id uint64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		idx[name] = id
	}
	return idx, rows.Err()
}

// Options lists active kiosks for the visit form, ordered by number.
func (r *KioskRepo) Options(ctx context.Context) ([]model.KioskOption, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, kiosk_number, address FROM kiosks WHERE is_active = 1 ORDER BY kiosk_number")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.KioskOption{}
	for rows.Next() {
		var o model.KioskOption
		if err := rows.Scan(&o.ID, &o.KioskNumber, &o.Address); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountKiosks counts every kiosk row, active or not.
func (r *KioskRepo) CountKiosks(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kiosks").Scan(&n)
	return n, err
}

// AssignedKioskIDs returns kiosks linked to the user, plus legacy rows with
// no link whose supervisor text equals the username exactly.
func (r *KioskRepo) AssignedKioskIDs(ctx context.Context, userID uint64, username string) ([]uint64, error) {
	const q = `SELECT id FROM kiosks
	            WHERE assigned_user_id = ?
	               OR (assigned_user_id IS NULL AND supervisor COLLATE utf8mb4_bin = ?)`
	rows, err := r.db.QueryContext(ctx, q, userID, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
