package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lanops/fleet-console/internal/domain"
)

type HistoryRepo struct{ db *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// EnsureSchema 建表（幂等）。
func (r *HistoryRepo) EnsureSchema() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS dispatch_history(
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        target_ip TEXT,
        action TEXT,
        success INTEGER,
        message TEXT,
        details TEXT,
        started_at TIMESTAMP,
        finished_at TIMESTAMP,
        duration_ms INTEGER
    )`)
	return err
}

func (r *HistoryRepo) Insert(h *domain.DispatchHistory) error {
	now := time.Now()
	if h.StartedAt.IsZero() {
		h.StartedAt = now
	}
	if h.FinishedAt.IsZero() {
		h.FinishedAt = now
	}
	res, err := r.db.Exec(`INSERT INTO dispatch_history(target_ip,action,success,message,details,started_at,finished_at,duration_ms)
        VALUES (?,?,?,?,?,?,?,?)`, h.TargetIP, h.Action, boolToInt(h.Success), h.Message, h.Details, h.StartedAt, h.FinishedAt, h.DurationMs)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	h.ID = id
	return nil
}

func (r *HistoryRepo) ListRecent(limit int) ([]domain.DispatchHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT id,target_ip,action,success,message,details,started_at,finished_at,duration_ms FROM dispatch_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistory(rows)
}

// ListFiltered 支持按 target_ip 与 action 关键字过滤 (模糊匹配)。传空表示忽略该条件。
func (r *HistoryRepo) ListFiltered(limit int, ip, actionLike string) ([]domain.DispatchHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	where := ""
	args := []any{}
	if ip != "" {
		where += " AND target_ip LIKE ?"
		args = append(args, "%"+ip+"%")
	}
	if actionLike != "" {
		where += " AND action LIKE ?"
		args = append(args, "%"+actionLike+"%")
	}
	q := `SELECT id,target_ip,action,success,message,details,started_at,finished_at,duration_ms FROM dispatch_history WHERE 1=1` + where + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistory(rows)
}

// Cleanup 根据保留天数与最大行数裁剪。
func (r *HistoryRepo) Cleanup(retentionDays, maxRows int) error {
	if retentionDays > 0 {
		_, _ = r.db.Exec(`DELETE FROM dispatch_history WHERE started_at < datetime('now', ?)`, fmt.Sprintf("-%d days", retentionDays))
	}
	if maxRows > 0 {
		_, _ = r.db.Exec(`DELETE FROM dispatch_history WHERE id IN (SELECT id FROM dispatch_history ORDER BY id DESC LIMIT -1 OFFSET ?)`, maxRows)
	}
	return nil
}

func scanHistory(rows *sql.Rows) ([]domain.DispatchHistory, error) {
	var list []domain.DispatchHistory
	for rows.Next() {
		var h domain.DispatchHistory
		var success int
		if err := rows.Scan(&h.ID, &h.TargetIP, &h.Action, &success, &h.Message, &h.Details, &h.StartedAt, &h.FinishedAt, &h.DurationMs); err != nil {
			return nil, err
		}
		h.Success = success != 0
		list = append(list, h)
	}
	return list, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
