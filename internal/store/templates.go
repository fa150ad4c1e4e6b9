package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"redraft/internal/core"
)

const templateColumns = `
	id, name, display_name, description, type, template, variables, version,
	language, content_type, priority, is_active, is_default, success_rate,
	usage_count, average_quality_score, parameters, test_group,
	created_at, updated_at, last_used_at, created_by`

func scanTemplate(row interface{ Scan(...any) error }) (*core.PromptTemplate, error) {
	var t core.PromptTemplate
	var ttype, contentType, variables string
	var lastUsed sql.NullTime

	err := row.Scan(
		&t.ID, &t.Name, &t.DisplayName, &t.Description, &ttype, &t.Template,
		&variables, &t.Version, &t.Language, &contentType, &t.Priority,
		&t.IsActive, &t.IsDefault, &t.SuccessRate, &t.UsageCount, &t.AvgQuality,
		&t.Parameters, &t.TestGroup, &t.CreatedAt, &t.UpdatedAt, &lastUsed, &t.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	t.Type = core.TemplateType(ttype)
	t.ContentType = core.ContentType(contentType)
	t.Variables = unmarshalList(variables)
	if lastUsed.Valid {
		t.LastUsedAt = &lastUsed.Time
	}
	return &t, nil
}

// SaveTemplate inserts a template, or updates it in place when overwrite is
// set and the name already exists. Returns the row id.
func (s *Store) SaveTemplate(t *core.PromptTemplate, overwrite bool) (int64, error) {
	if t.Name == "" {
		return 0, core.E(core.KindValidation, "template name is required")
	}
	if t.Template == "" {
		return 0, core.E(core.KindValidation, "template text is required")
	}

	now := time.Now().UTC()
	version := t.Version
	if version == 0 {
		version = 1
	}

	insert := `
	INSERT INTO prompt_templates
	(name, display_name, description, type, template, variables, version,
	 language, content_type, priority, is_active, is_default, success_rate,
	 usage_count, average_quality_score, parameters, test_group,
	 created_at, updated_at, last_used_at, created_by)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.Exec(insert,
		t.Name, t.DisplayName, t.Description, string(t.Type), t.Template,
		marshalList(t.Variables), version, t.Language, string(t.ContentType),
		t.Priority, t.IsActive, t.IsDefault, t.SuccessRate, t.UsageCount,
		t.AvgQuality, t.Parameters, t.TestGroup, now, now, t.LastUsedAt, t.CreatedBy,
	)
	if err == nil {
		id, idErr := res.LastInsertId()
		if idErr != nil {
			return 0, idErr
		}
		if t.IsDefault {
			if err := s.SetDefaultTemplate(id); err != nil {
				return 0, err
			}
		}
		return id, nil
	}
	if !isUniqueViolation(err) {
		return 0, fmt.Errorf("insert template: %w", err)
	}
	if !overwrite {
		return 0, core.Ef(core.KindDuplicateKey, "template name %q already exists", t.Name)
	}

	update := `
	UPDATE prompt_templates SET
	 display_name = ?, description = ?, type = ?, template = ?, variables = ?,
	 version = ?, language = ?, content_type = ?, priority = ?, is_active = ?,
	 is_default = ?, parameters = ?, test_group = ?, updated_at = ?
	WHERE name = ?`
	if _, err := s.db.Exec(update,
		t.DisplayName, t.Description, string(t.Type), t.Template,
		marshalList(t.Variables), version, t.Language, string(t.ContentType),
		t.Priority, t.IsActive, t.IsDefault, t.Parameters, t.TestGroup, now, t.Name,
	); err != nil {
		return 0, fmt.Errorf("overwrite template: %w", err)
	}

	existing, err := s.GetTemplateByName(t.Name)
	if err != nil {
		return 0, err
	}
	if t.IsDefault {
		if err := s.SetDefaultTemplate(existing.ID); err != nil {
			return 0, err
		}
	}
	return existing.ID, nil
}

// GetTemplate loads one template by id.
func (s *Store) GetTemplate(id int64) (*core.PromptTemplate, error) {
	row := s.db.QueryRow("SELECT"+templateColumns+" FROM prompt_templates WHERE id = ?", id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, core.Ef(core.KindNotFound, "template %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	return t, nil
}

// GetTemplateByName loads one template by its unique name.
func (s *Store) GetTemplateByName(name string) (*core.PromptTemplate, error) {
	row := s.db.QueryRow("SELECT"+templateColumns+" FROM prompt_templates WHERE name = ?", name)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, core.Ef(core.KindNotFound, "template %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	return t, nil
}

// TemplateFilter narrows SelectTemplates.
type TemplateFilter struct {
	ContentType core.ContentType
	ActiveOnly  bool
}

// SelectTemplates returns templates of one type ordered by priority descending
// then newest first, so the first row is the selection-policy winner.
func (s *Store) SelectTemplates(ttype core.TemplateType, filter TemplateFilter) ([]core.PromptTemplate, error) {
	where := []string{"type = ?"}
	args := []any{string(ttype)}
	if filter.ContentType != "" {
		where = append(where, "content_type = ?")
		args = append(args, string(filter.ContentType))
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = 1")
	}

	query := "SELECT" + templateColumns + " FROM prompt_templates WHERE " +
		strings.Join(where, " AND ") + " ORDER BY priority DESC, created_at DESC, id DESC"
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("select templates: %w", err)
	}
	defer rows.Close()

	var templates []core.PromptTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// SetDefaultTemplate marks one template as the default for its type and
// clears the flag on every other template of the same type in the same
// transaction.
func (s *Store) SetDefaultTemplate(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin set default: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var ttype string
	err = tx.QueryRow("SELECT type FROM prompt_templates WHERE id = ?", id).Scan(&ttype)
	if err == sql.ErrNoRows {
		return core.Ef(core.KindNotFound, "template %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("read template type: %w", err)
	}

	if _, err := tx.Exec("UPDATE prompt_templates SET is_default = 0 WHERE type = ? AND id != ?", ttype, id); err != nil {
		return fmt.Errorf("clear defaults: %w", err)
	}
	if _, err := tx.Exec("UPDATE prompt_templates SET is_default = 1, updated_at = ? WHERE id = ?", time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set default: %w", err)
	}
	return tx.Commit()
}

// RecordTemplateUse updates the usage counters after one detect-optimise
// attempt that used the template. The success rate is a running average.
func (s *Store) RecordTemplateUse(id int64, passed bool, qualityScore float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin record use: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	var rate, quality float64
	err = tx.QueryRow("SELECT usage_count, success_rate, average_quality_score FROM prompt_templates WHERE id = ?", id).
		Scan(&count, &rate, &quality)
	if err == sql.ErrNoRows {
		return core.Ef(core.KindNotFound, "template %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("read counters: %w", err)
	}

	successes := rate * float64(count)
	if passed {
		successes++
	}
	newCount := count + 1
	newRate := successes / float64(newCount)
	newQuality := (quality*float64(count) + qualityScore) / float64(newCount)

	_, err = tx.Exec(`
	UPDATE prompt_templates
	SET usage_count = ?, success_rate = ?, average_quality_score = ?, last_used_at = ?, updated_at = ?
	WHERE id = ?`,
		newCount, newRate, newQuality, time.Now().UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update counters: %w", err)
	}
	return tx.Commit()
}

// ExportTemplates serialises all templates to the neutral JSON form.
func (s *Store) ExportTemplates() ([]byte, error) {
	types := []core.TemplateType{
		core.TemplateTranslation, core.TemplateOptimisation,
		core.TemplateCreation, core.TemplateAIReduction,
	}
	var all []core.PromptTemplate
	for _, ttype := range types {
		templates, err := s.SelectTemplates(ttype, TemplateFilter{})
		if err != nil {
			return nil, err
		}
		all = append(all, templates...)
	}
	return json.MarshalIndent(all, "", "  ")
}

// ImportTemplates loads templates from the neutral JSON form. With overwrite
// set, name collisions replace the stored declared fields; otherwise they are
// skipped. Returns the number imported.
func (s *Store) ImportTemplates(data []byte, overwrite bool) (int, error) {
	var templates []core.PromptTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		return 0, core.Wrap(core.KindValidation, "invalid template export", err)
	}

	imported := 0
	for i := range templates {
		t := templates[i]
		t.ID = 0
		if _, err := s.SaveTemplate(&t, overwrite); err != nil {
			if core.IsKind(err, core.KindDuplicateKey) {
				continue
			}
			return imported, err
		}
		imported++
	}
	return imported, nil
}
