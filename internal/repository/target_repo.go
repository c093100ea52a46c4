package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lanops/fleet-console/internal/domain"
)

// TargetRepo 目标清单仓库。以 ip 为唯一键做 upsert。
type TargetRepo struct {
	db *sql.DB
}

func NewTargetRepo(db *sql.DB) *TargetRepo {
	return &TargetRepo{db: db}
}

func (r *TargetRepo) EnsureSchema() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS targets(
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ip TEXT UNIQUE NOT NULL,
        remark TEXT,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    )`)
	return err
}

func (r *TargetRepo) GetByIP(ip string) (domain.TargetEntry, error) {
	var t domain.TargetEntry
	var createdAtStr string
	row := r.db.QueryRow(`SELECT id, ip, COALESCE(remark,''), COALESCE(created_at,'') FROM targets WHERE ip = ? LIMIT 1`, ip)
	if err := row.Scan(&t.ID, &t.IP, &t.Remark, &createdAtStr); err != nil {
		return domain.TargetEntry{}, err
	}
	if createdAtStr != "" {
		if ts, e := time.Parse(time.RFC3339Nano, createdAtStr); e == nil {
			t.CreatedAt = ts
		}
	}
	return t, nil
}

func (r *TargetRepo) Save(t *domain.TargetEntry) error {
	ex, err := r.GetByIP(t.IP)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if ex.ID == 0 { // insert
		res, err := r.db.Exec(`INSERT INTO targets (ip, remark) VALUES (?,?)`, t.IP, t.Remark)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		t.ID = int(id)
	} else { // update
		if _, err := r.db.Exec(`UPDATE targets SET remark=? WHERE ip=?`, t.Remark, t.IP); err != nil {
			return err
		}
		t.ID = ex.ID
	}
	return nil
}

// ListAll 返回全部目标（用于导出与前端渲染）。
func (r *TargetRepo) ListAll() ([]domain.TargetEntry, error) {
	rows, err := r.db.Query(`SELECT id, ip, COALESCE(remark,''), COALESCE(created_at,'') FROM targets ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []domain.TargetEntry
	for rows.Next() {
		var t domain.TargetEntry
		var createdAtStr string
		if err := rows.Scan(&t.ID, &t.IP, &t.Remark, &createdAtStr); err != nil {
			return nil, err
		}
		if createdAtStr != "" {
			if ts, e := time.Parse(time.RFC3339Nano, createdAtStr); e == nil {
				t.CreatedAt = ts
			}
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// BulkUpsert 批量插入/更新（以 ip 作为唯一键），事务一次性提交。
func (r *TargetRepo) BulkUpsert(ts []domain.TargetEntry) error {
	if len(ts) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for i := range ts {
		t := &ts[i]
		var exID int
		row := tx.QueryRow(`SELECT id FROM targets WHERE ip = ? LIMIT 1`, t.IP)
		_ = row.Scan(&exID)
		if exID == 0 {
			res, e := tx.Exec(`INSERT INTO targets (ip, remark) VALUES (?,?)`, t.IP, t.Remark)
			if e != nil {
				err = e
				return err
			}
			id, _ := res.LastInsertId()
			t.ID = int(id)
		} else {
			if _, e := tx.Exec(`UPDATE targets SET remark=? WHERE ip=?`, t.Remark, t.IP); e != nil {
				err = e
				return err
			}
			t.ID = exID
		}
	}
	return tx.Commit()
}

// DeleteByIP 根据 ip 删除目标
func (r *TargetRepo) DeleteByIP(ip string) error {
	if strings.TrimSpace(ip) == "" {
		return errors.New("empty ip")
	}
	_, err := r.db.Exec(`DELETE FROM targets WHERE ip=?`, ip)
	return err
}
