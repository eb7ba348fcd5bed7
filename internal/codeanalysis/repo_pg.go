package codeanalysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const recordColumns = `id::text, repository_url, status, error, ingested_repository, technologies::text,
       data_model_files::text, data_model_analysis,
       routes_interfaces_files::text, routes_interfaces_analysis,
       business_logic_files::text, business_logic_analysis,
       product_requirements, architecture_documentation, created_at, updated_at`

// Create inserts a new record.
func (r *PGRepo) Create(ctx context.Context, rec Record) (Record, error) {
	if err := validateID(rec.ID); err != nil {
		return Record{}, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt

	const query = `
INSERT INTO code_analyses (id, repository_url, status, created_at, updated_at)
VALUES ($1::uuid, $2, $3, $4, $5)`
	if _, err := r.DB.ExecContext(ctx, query, rec.ID, rec.RepositoryURL, string(rec.Status), rec.CreatedAt, rec.UpdatedAt); err != nil {
		return Record{}, fmt.Errorf("insert analysis: %w", err)
	}
	return rec, nil
}

// Get returns a record by ID.
func (r *PGRepo) Get(ctx context.Context, id string) (Record, error) {
	if err := validateID(id); err != nil {
		return Record{}, err
	}
	query := `
SELECT ` + recordColumns + `
FROM code_analyses
WHERE id = $1::uuid`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Update writes only the fields set on u in a single statement. Status and
// error are guarded on the stored status still being IN_PROGRESS.
func (r *PGRepo) Update(ctx context.Context, id string, u *Update) (Record, error) {
	if u.IsEmpty() {
		return r.Get(ctx, id)
	}
	if err := validateID(id); err != nil {
		return Record{}, err
	}

	query := `
UPDATE code_analyses
SET status = CASE WHEN $2::text IS NOT NULL AND status = 'IN_PROGRESS' THEN $2::text ELSE status END,
    error = CASE WHEN $3::text IS NOT NULL AND status = 'IN_PROGRESS' THEN $3::text ELSE error END,
    ingested_repository = COALESCE($4::text, ingested_repository),
    technologies = COALESCE($5::jsonb, technologies),
    data_model_files = COALESCE($6::jsonb, data_model_files),
    data_model_analysis = COALESCE($7::text, data_model_analysis),
    routes_interfaces_files = COALESCE($8::jsonb, routes_interfaces_files),
    routes_interfaces_analysis = COALESCE($9::text, routes_interfaces_analysis),
    business_logic_files = COALESCE($10::jsonb, business_logic_files),
    business_logic_analysis = COALESCE($11::text, business_logic_analysis),
    product_requirements = COALESCE($12::text, product_requirements),
    architecture_documentation = COALESCE($13::text, architecture_documentation),
    updated_at = now()
WHERE id = $1::uuid
RETURNING ` + recordColumns

	args, err := updateArgs(id, u)
	if err != nil {
		return Record{}, err
	}
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("update analysis %s: %w", id, err)
	}
	return rec, nil
}

// List returns records newest first.
func (r *PGRepo) List(ctx context.Context, filters Filters) ([]Record, error) {
	filters = filters.normalized()
	var status any
	if filters.Status != nil {
		status = string(*filters.Status)
	}

	query := `
SELECT ` + recordColumns + `
FROM code_analyses
WHERE ($1::text IS NULL OR status = $1::text)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, status, filters.Limit, filters.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var status string
	var errMsg, ingested sql.NullString
	var technologies, dataModelFiles, routesFiles, businessFiles sql.NullString
	var dataModelAnalysis, routesAnalysis, businessAnalysis sql.NullString
	var requirements, architecture sql.NullString
	if err := row.Scan(
		&rec.ID,
		&rec.RepositoryURL,
		&status,
		&errMsg,
		&ingested,
		&technologies,
		&dataModelFiles,
		&dataModelAnalysis,
		&routesFiles,
		&routesAnalysis,
		&businessFiles,
		&businessAnalysis,
		&requirements,
		&architecture,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	rec.Error = nullString(errMsg)
	rec.IngestedRepository = nullString(ingested)
	rec.DataModelAnalysis = nullString(dataModelAnalysis)
	rec.RoutesInterfacesAnalysis = nullString(routesAnalysis)
	rec.BusinessLogicAnalysis = nullString(businessAnalysis)
	rec.ProductRequirements = nullString(requirements)
	rec.ArchitectureDocumentation = nullString(architecture)

	var err error
	if rec.Technologies, err = decodeList(technologies); err != nil {
		return Record{}, fmt.Errorf("decode technologies: %w", err)
	}
	if rec.DataModelFiles, err = decodeList(dataModelFiles); err != nil {
		return Record{}, fmt.Errorf("decode data_model_files: %w", err)
	}
	if rec.RoutesInterfacesFiles, err = decodeList(routesFiles); err != nil {
		return Record{}, fmt.Errorf("decode routes_interfaces_files: %w", err)
	}
	if rec.BusinessLogicFiles, err = decodeList(businessFiles); err != nil {
		return Record{}, fmt.Errorf("decode business_logic_files: %w", err)
	}
	return rec, nil
}

func updateArgs(id string, u *Update) ([]any, error) {
	args := []any{id}
	if s, ok := u.Status(); ok {
		args = append(args, string(s))
	} else {
		args = append(args, nil)
	}
	args = append(args, textArg(u, FieldError), textArg(u, FieldIngestedRepository))
	order := []Field{
		FieldTechnologies,
		FieldDataModelFiles, FieldDataModelAnalysis,
		FieldRoutesInterfacesFiles, FieldRoutesInterfacesAnalysis,
		FieldBusinessLogicFiles, FieldBusinessLogicAnalysis,
		FieldProductRequirements, FieldArchitectureDocumentation,
	}
	for _, f := range order {
		if !f.IsList() {
			args = append(args, textArg(u, f))
			continue
		}
		arg, err := listArg(u, f)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func textArg(u *Update, f Field) any {
	if v, ok := u.Text(f); ok {
		return v
	}
	return nil
}

func listArg(u *Update, f Field) (any, error) {
	v, ok := u.List(f)
	if !ok {
		return nil, nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", f, err)
	}
	return string(payload), nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func decodeList(v sql.NullString) ([]string, error) {
	if !v.Valid {
		return nil, nil
	}
	out := []string{}
	if err := json.Unmarshal([]byte(v.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ Repo = (*PGRepo)(nil)
