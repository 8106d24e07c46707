package imgpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/UnendingLoop/BGRemover/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) Create(ctx context.Context, t *model.Task) error {
	query := `INSERT INTO tasks (task_uid, provider, source_key, source_url, params, width, height, status, err_msg, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	return p.DB.QueryRowContext(ctx, query, t.UID, t.Provider, t.SourceKey, t.SourceURL, t.Params, t.Width, t.Height, t.Status, t.ErrMsg, t.CreatedAt, t.CreatedAt).Err()
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.Task, error) {
	query := `SELECT task_uid, provider, source_key, source_url, result_key, resource_url, params, width, height, status, err_msg, created_at, updated_at
	FROM tasks
	WHERE task_uid = $1`
	var task model.Task

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&task.UID,
		&task.Provider,
		&task.SourceKey,
		&task.SourceURL,
		&task.ResultKey,
		&task.ResourceURL,
		&task.Params,
		&task.Width,
		&task.Height,
		&task.Status,
		&task.ErrMsg,
		&task.CreatedAt,
		&task.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &task, nil
}

func (p PostgresRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Task, error) {
	// Sort и Order уже нормализованы сервисом до белого списка
	query := fmt.Sprintf(`SELECT task_uid, provider, source_url, resource_url, width, height, status, err_msg, created_at, updated_at
	FROM tasks
	ORDER BY %s %s
	LIMIT $1
	OFFSET $2`, req.Sort, req.Order)

	offset := (req.Page - 1) * req.Limit

	rows, err := p.DB.QueryContext(ctx, query, req.Limit, offset)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	tasks := make([]model.Task, 0, req.Limit)
	for rows.Next() {
		var task model.Task
		if err := rows.Scan(&task.UID,
			&task.Provider,
			&task.SourceURL,
			&task.ResourceURL,
			&task.Width,
			&task.Height,
			&task.Status,
			&task.ErrMsg,
			&task.CreatedAt,
			&task.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return tasks, nil
}

func (p PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM tasks
	WHERE task_uid = $1
	RETURNING task_uid`

	var uid string
	if err := p.DB.QueryRowContext(ctx, query, id).Scan(&uid); err != nil {
		return notFoundOr(err)
	}
	return nil
}

func (p PostgresRepo) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	query := `UPDATE tasks SET status = $1, updated_at = now()
	WHERE task_uid = $2
	RETURNING task_uid`

	var uid string
	if err := p.DB.QueryRowContext(ctx, query, newStat, id).Scan(&uid); err != nil {
		return notFoundOr(err)
	}
	return nil
}

func (p PostgresRepo) SaveResult(ctx context.Context, t *model.Task) error {
	query := `UPDATE tasks SET status = $1, result_key = $2, resource_url = $3, updated_at = $4
	WHERE task_uid = $5
	RETURNING task_uid`

	var uid string
	if err := p.DB.QueryRowContext(ctx, query, t.Status, t.ResultKey, t.ResourceURL, t.UpdatedAt, t.UID).Scan(&uid); err != nil {
		return notFoundOr(err)
	}
	return nil
}

// MarkFailed appends reason to err_msg and sets status failed in one statement.
func (p PostgresRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	query := `UPDATE tasks SET status = $1, err_msg = err_msg || jsonb_build_array($2::text), updated_at = now()
	WHERE task_uid = $3
	RETURNING task_uid`

	var uid string
	if err := p.DB.QueryRowContext(ctx, query, model.StatusFailed, reason, id).Scan(&uid); err != nil {
		return notFoundOr(err)
	}
	return nil
}

func (p PostgresRepo) FetchOrphans(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT task_uid
	FROM tasks
	WHERE status IN ($1, $2)
	AND updated_at < now() - interval '10 minutes'
	LIMIT $3`

	rows, err := p.DB.QueryContext(ctx, query, model.StatusCreated, model.StatusInProgress, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	orphans := make([]string, 0, limit)
	for rows.Next() {
		uid := ""
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		orphans = append(orphans, uid)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return orphans, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrTaskNotFound // 404
	}
	return err // 500
}
