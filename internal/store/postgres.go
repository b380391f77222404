package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"justicebid/api/internal/util"
)

// PostgresStore is the only component allowed to mutate the OCG entity
// graph. Read methods return nil/empty on a miss and never invent
// errors for "not found"; every multi-row write runs in one transaction
// and rolls back completely on failure.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// querier is satisfied by both *sql.DB and *sql.Tx so scan helpers can
// run inside or outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ---- OCG ----

const ocgColumns = `id, client_id, name, version, status, total_points, default_firm_point_budget,
	published_at, signed_at, COALESCE(settings, '{}'::jsonb), created_at, updated_at`

func scanOCG(row interface{ Scan(...any) error }) (*OCG, error) {
	var o OCG
	var status string
	var settings []byte
	err := row.Scan(&o.ID, &o.ClientID, &o.Name, &o.Version, &status, &o.TotalPoints,
		&o.DefaultFirmPointBudget, &o.PublishedAt, &o.SignedAt, &settings, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("scan ocg %s: %w", o.ID, err)
	}
	o.Status = parsed
	o.Settings = json.RawMessage(settings)
	return &o, nil
}

// CreateOCGParams carries create inputs. Zero Version and TotalPoints
// take the defaults (1 and 10); DefaultFirmPointBudget nil takes 5 so an
// explicit zero budget stays distinguishable.
type CreateOCGParams struct {
	ClientID               string
	Name                   string
	Version                int
	TotalPoints            int
	DefaultFirmPointBudget *int
	Settings               json.RawMessage
}

func (s *PostgresStore) CreateOCG(ctx context.Context, params CreateOCGParams) (*OCG, error) {
	if params.Version <= 0 {
		params.Version = 1
	}
	if params.TotalPoints <= 0 {
		params.TotalPoints = 10
	}
	budget := 5
	if params.DefaultFirmPointBudget != nil {
		budget = *params.DefaultFirmPointBudget
	}
	settings := params.Settings
	if len(settings) == 0 {
		settings = json.RawMessage(`{}`)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO ocgs (id, client_id, name, version, status, total_points, default_firm_point_budget, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+ocgColumns,
		util.NewID("ocg"), params.ClientID, params.Name, params.Version,
		string(StatusDraft), params.TotalPoints, budget, []byte(settings))
	ocg, err := scanOCG(row)
	if err != nil {
		return nil, fmt.Errorf("insert ocg: %w", err)
	}
	return ocg, nil
}

func (s *PostgresStore) GetOCG(ctx context.Context, ocgID string) (*OCG, error) {
	return getOCG(ctx, s.db, ocgID)
}

func getOCG(ctx context.Context, q querier, ocgID string) (*OCG, error) {
	row := q.QueryRowContext(ctx, `SELECT `+ocgColumns+` FROM ocgs WHERE id=$1`, ocgID)
	ocg, err := scanOCG(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ocg: %w", err)
	}
	return ocg, nil
}

func (s *PostgresStore) ListOCGsByClient(ctx context.Context, clientID string) ([]OCG, error) {
	return s.listOCGs(ctx, `SELECT `+ocgColumns+` FROM ocgs WHERE client_id=$1 ORDER BY name, version`, clientID)
}

func (s *PostgresStore) ListOCGsByStatus(ctx context.Context, status Status) ([]OCG, error) {
	return s.listOCGs(ctx, `SELECT `+ocgColumns+` FROM ocgs WHERE status=$1 ORDER BY created_at`, string(status))
}

func (s *PostgresStore) listOCGs(ctx context.Context, query string, args ...any) ([]OCG, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ocgs: %w", err)
	}
	defer rows.Close()
	var out []OCG
	for rows.Next() {
		ocg, err := scanOCG(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ocg row: %w", err)
		}
		out = append(out, *ocg)
	}
	return out, rows.Err()
}

// GetCurrentVersion returns the highest-version OCG for (client, name),
// or nil when none exists.
func (s *PostgresStore) GetCurrentVersion(ctx context.Context, clientID, name string) (*OCG, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ocgColumns+` FROM ocgs
		WHERE client_id=$1 AND name=$2
		ORDER BY version DESC
		LIMIT 1`, clientID, name)
	ocg, err := scanOCG(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get current version: %w", err)
	}
	return ocg, nil
}

// UpdateOCG applies the whitelisted partial update and returns the fresh
// row, or nil when the id is unknown.
func (s *PostgresStore) UpdateOCG(ctx context.Context, ocgID string, update OCGUpdate) (*OCG, error) {
	set := []string{"updated_at=NOW()"}
	args := []any{ocgID}
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, fmt.Errorf("update ocg: invalid status %q", *update.Status)
		}
		add("status", string(*update.Status))
	}
	if update.TotalPoints != nil {
		add("total_points", *update.TotalPoints)
	}
	if update.DefaultFirmPointBudget != nil {
		add("default_firm_point_budget", *update.DefaultFirmPointBudget)
	}
	if update.Settings != nil {
		add("settings", []byte(update.Settings))
	}

	row := s.db.QueryRowContext(ctx,
		`UPDATE ocgs SET `+joinSet(set)+` WHERE id=$1 RETURNING `+ocgColumns, args...)
	ocg, err := scanOCG(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update ocg: %w", err)
	}
	return ocg, nil
}

func joinSet(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// UpdateOCGStatus advances the OCG one step forward. The required
// predecessor is part of the UPDATE predicate, so two callers racing
// past the same service-level precondition cannot double-transition:
// the loser matches no row and gets nil back. Stamps
// published_at/signed_at on the way.
func (s *PostgresStore) UpdateOCGStatus(ctx context.Context, ocgID string, status Status) (*OCG, error) {
	prev, ok := status.Predecessor()
	if !ok {
		return nil, fmt.Errorf("update ocg status: no transition into %q", status)
	}
	stamp := ""
	switch status {
	case StatusPublished:
		stamp = ", published_at=NOW()"
	case StatusSigned:
		stamp = ", signed_at=NOW()"
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE ocgs SET status=$2, updated_at=NOW()`+stamp+` WHERE id=$1 AND status=$3 RETURNING `+ocgColumns,
		ocgID, string(status), string(prev))
	ocg, err := scanOCG(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update ocg status: %w", err)
	}
	return ocg, nil
}

// ---- Sections ----

const sectionColumns = `id, ocg_id, parent_id, title, content, is_negotiable, sort_order, created_at, updated_at`

func scanSection(row interface{ Scan(...any) error }) (*Section, error) {
	var sec Section
	err := row.Scan(&sec.ID, &sec.OCGID, &sec.ParentID, &sec.Title, &sec.Content,
		&sec.IsNegotiable, &sec.SortOrder, &sec.CreatedAt, &sec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

// AddSectionParams: nil SortOrder appends after the last sibling;
// nil ParentID creates a top-level section.
type AddSectionParams struct {
	OCGID        string
	ParentID     *string
	Title        string
	Content      string
	IsNegotiable bool
	SortOrder    *int
}

func (s *PostgresStore) AddSection(ctx context.Context, params AddSectionParams) (*Section, error) {
	var created *Section
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ocg, err := getOCG(ctx, tx, params.OCGID)
		if err != nil {
			return err
		}
		if ocg == nil {
			return nil
		}
		if params.ParentID != nil {
			parent, err := getSection(ctx, tx, *params.ParentID)
			if err != nil {
				return err
			}
			if parent == nil || parent.OCGID != params.OCGID {
				return nil
			}
		}
		order := 0
		if params.SortOrder != nil {
			order = *params.SortOrder
		} else {
			next, err := nextSectionOrder(ctx, tx, params.OCGID, params.ParentID)
			if err != nil {
				return err
			}
			order = next
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO ocg_sections (id, ocg_id, parent_id, title, content, is_negotiable, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+sectionColumns,
			util.NewID("sec"), params.OCGID, params.ParentID, params.Title, params.Content,
			params.IsNegotiable, order)
		created, err = scanSection(row)
		if err != nil {
			return fmt.Errorf("insert section: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func nextSectionOrder(ctx context.Context, q querier, ocgID string, parentID *string) (int, error) {
	var max sql.NullInt64
	var err error
	if parentID == nil {
		err = q.QueryRowContext(ctx,
			`SELECT MAX(sort_order) FROM ocg_sections WHERE ocg_id=$1 AND parent_id IS NULL`, ocgID).Scan(&max)
	} else {
		err = q.QueryRowContext(ctx,
			`SELECT MAX(sort_order) FROM ocg_sections WHERE ocg_id=$1 AND parent_id=$2`, ocgID, *parentID).Scan(&max)
	}
	if err != nil {
		return 0, fmt.Errorf("next section order: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

func (s *PostgresStore) GetSection(ctx context.Context, sectionID string) (*Section, error) {
	return getSection(ctx, s.db, sectionID)
}

func getSection(ctx context.Context, q querier, sectionID string) (*Section, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM ocg_sections WHERE id=$1`, sectionID)
	sec, err := scanSection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get section: %w", err)
	}
	return sec, nil
}

func (s *PostgresStore) UpdateSection(ctx context.Context, sectionID string, update SectionUpdate) (*Section, error) {
	set := []string{"updated_at=NOW()"}
	args := []any{sectionID}
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Content != nil {
		add("content", *update.Content)
	}
	if update.IsNegotiable != nil {
		add("is_negotiable", *update.IsNegotiable)
	}
	if update.SortOrder != nil {
		add("sort_order", *update.SortOrder)
	}
	if update.ParentID != nil {
		add("parent_id", *update.ParentID)
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE ocg_sections SET `+joinSet(set)+` WHERE id=$1 RETURNING `+sectionColumns, args...)
	sec, err := scanSection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update section: %w", err)
	}
	return sec, nil
}

// DeleteSection removes the section and, via FK cascade, its subtree,
// alternatives, and any firm selections pointing into it.
func (s *PostgresStore) DeleteSection(ctx context.Context, sectionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ocg_sections WHERE id=$1`, sectionID)
	if err != nil {
		return false, fmt.Errorf("delete section: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete section rows: %w", err)
	}
	return n > 0, nil
}

// ---- Alternatives ----

const alternativeColumns = `id, section_id, title, content, points, sort_order, is_default, created_at, updated_at`

func scanAlternative(row interface{ Scan(...any) error }) (*Alternative, error) {
	var alt Alternative
	err := row.Scan(&alt.ID, &alt.SectionID, &alt.Title, &alt.Content, &alt.Points,
		&alt.SortOrder, &alt.IsDefault, &alt.CreatedAt, &alt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &alt, nil
}

// AddAlternativeParams: nil IsDefault means "first one in wins"; nil
// SortOrder appends after the last sibling.
type AddAlternativeParams struct {
	SectionID string
	Title     string
	Content   string
	Points    int
	SortOrder *int
	IsDefault *bool
}

// AddAlternative inserts the alternative, flips the owning section to
// negotiable if it was not, and applies the default-assignment rules in
// the same transaction.
func (s *PostgresStore) AddAlternative(ctx context.Context, params AddAlternativeParams) (*Alternative, error) {
	var created *Alternative
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sec, err := getSection(ctx, tx, params.SectionID)
		if err != nil {
			return err
		}
		if sec == nil {
			return nil
		}
		siblings, err := listAltStates(ctx, tx, params.SectionID)
		if err != nil {
			return err
		}
		order := 0
		if params.SortOrder != nil {
			order = *params.SortOrder
		} else {
			var max sql.NullInt64
			if err := tx.QueryRowContext(ctx,
				`SELECT MAX(sort_order) FROM ocg_alternatives WHERE section_id=$1`, params.SectionID).Scan(&max); err != nil {
				return fmt.Errorf("next alternative order: %w", err)
			}
			if max.Valid {
				order = int(max.Int64) + 1
			}
		}

		newID := util.NewID("alt")
		defaultID := resolveDefaultOnAdd(siblings, newID, params.IsDefault)
		if defaultID == newID && len(siblings) > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE ocg_alternatives SET is_default=FALSE, updated_at=NOW() WHERE section_id=$1 AND is_default`, params.SectionID); err != nil {
				return fmt.Errorf("unset sibling defaults: %w", err)
			}
		}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO ocg_alternatives (id, section_id, title, content, points, sort_order, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+alternativeColumns,
			newID, params.SectionID, params.Title, params.Content, params.Points, order, defaultID == newID)
		created, err = scanAlternative(row)
		if err != nil {
			return fmt.Errorf("insert alternative: %w", err)
		}

		if !sec.IsNegotiable {
			if _, err := tx.ExecContext(ctx,
				`UPDATE ocg_sections SET is_negotiable=TRUE, updated_at=NOW() WHERE id=$1`, params.SectionID); err != nil {
				return fmt.Errorf("mark section negotiable: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func listAltStates(ctx context.Context, q querier, sectionID string) ([]altState, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, is_default FROM ocg_alternatives WHERE section_id=$1 ORDER BY sort_order, created_at FOR UPDATE`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("list alternative states: %w", err)
	}
	defer rows.Close()
	var out []altState
	for rows.Next() {
		var st altState
		if err := rows.Scan(&st.ID, &st.IsDefault); err != nil {
			return nil, fmt.Errorf("scan alternative state: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAlternative(ctx context.Context, alternativeID string) (*Alternative, error) {
	return getAlternative(ctx, s.db, alternativeID)
}

func getAlternative(ctx context.Context, q querier, alternativeID string) (*Alternative, error) {
	row := q.QueryRowContext(ctx, `SELECT `+alternativeColumns+` FROM ocg_alternatives WHERE id=$1`, alternativeID)
	alt, err := scanAlternative(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alternative: %w", err)
	}
	return alt, nil
}

func (s *PostgresStore) UpdateAlternative(ctx context.Context, alternativeID string, update AlternativeUpdate) (*Alternative, error) {
	var updated *Alternative
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getAlternative(ctx, tx, alternativeID)
		if err != nil {
			return err
		}
		if current == nil {
			return nil
		}
		if update.IsDefault != nil && *update.IsDefault && !current.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE ocg_alternatives SET is_default=FALSE, updated_at=NOW() WHERE section_id=$1 AND is_default`, current.SectionID); err != nil {
				return fmt.Errorf("unset sibling defaults: %w", err)
			}
		}
		if update.IsDefault != nil && !*update.IsDefault && current.IsDefault {
			// Exactly one default must survive: hand it to a sibling, or
			// keep it here when this is the only alternative.
			siblings, err := listAltStates(ctx, tx, current.SectionID)
			if err != nil {
				return err
			}
			promoted := false
			for _, sib := range siblings {
				if sib.ID == alternativeID {
					continue
				}
				if _, err := tx.ExecContext(ctx,
					`UPDATE ocg_alternatives SET is_default=TRUE, updated_at=NOW() WHERE id=$1`, sib.ID); err != nil {
					return fmt.Errorf("promote sibling default: %w", err)
				}
				promoted = true
				break
			}
			if !promoted {
				update.IsDefault = nil
			}
		}

		set := []string{"updated_at=NOW()"}
		args := []any{alternativeID}
		add := func(column string, value any) {
			args = append(args, value)
			set = append(set, fmt.Sprintf("%s=$%d", column, len(args)))
		}
		if update.Title != nil {
			add("title", *update.Title)
		}
		if update.Content != nil {
			add("content", *update.Content)
		}
		if update.Points != nil {
			add("points", *update.Points)
		}
		if update.SortOrder != nil {
			add("sort_order", *update.SortOrder)
		}
		if update.IsDefault != nil {
			add("is_default", *update.IsDefault)
		}
		row := tx.QueryRowContext(ctx,
			`UPDATE ocg_alternatives SET `+joinSet(set)+` WHERE id=$1 RETURNING `+alternativeColumns, args...)
		updated, err = scanAlternative(row)
		if err != nil {
			return fmt.Errorf("update alternative: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteAlternative removes the alternative, promotes a surviving
// sibling to default when the default was deleted, and clears the
// section's is_negotiable when the last alternative goes.
func (s *PostgresStore) DeleteAlternative(ctx context.Context, alternativeID string) (bool, error) {
	deleted := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getAlternative(ctx, tx, alternativeID)
		if err != nil {
			return err
		}
		if current == nil {
			return nil
		}
		siblings, err := listAltStates(ctx, tx, current.SectionID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ocg_alternatives WHERE id=$1`, alternativeID); err != nil {
			return fmt.Errorf("delete alternative: %w", err)
		}
		deleted = true

		promoteID, remaining := resolveDefaultOnDelete(siblings, alternativeID)
		if !remaining {
			if _, err := tx.ExecContext(ctx,
				`UPDATE ocg_sections SET is_negotiable=FALSE, updated_at=NOW() WHERE id=$1`, current.SectionID); err != nil {
				return fmt.Errorf("clear section negotiable: %w", err)
			}
			return nil
		}
		if promoteID != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE ocg_alternatives SET is_default=TRUE, updated_at=NOW() WHERE id=$1`, promoteID); err != nil {
				return fmt.Errorf("promote default: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// ---- Firm selections ----

const selectionColumns = `id, ocg_id, firm_id, section_id, alternative_id, points_used, selected_at`

func scanSelection(row interface{ Scan(...any) error }) (*FirmSelection, error) {
	var sel FirmSelection
	err := row.Scan(&sel.ID, &sel.OCGID, &sel.FirmID, &sel.SectionID, &sel.AlternativeID,
		&sel.PointsUsed, &sel.SelectedAt)
	if err != nil {
		return nil, err
	}
	return &sel, nil
}

// CreateFirmSelection validates that the section belongs to the OCG and
// the alternative to the section, snapshots the alternative's points,
// and upserts on (ocg, firm, section). Returns nil on a referential
// mismatch; budget policy is the service's concern.
func (s *PostgresStore) CreateFirmSelection(ctx context.Context, ocgID, firmID, sectionID, alternativeID string) (*FirmSelection, error) {
	var created *FirmSelection
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = upsertSelection(ctx, tx, ocgID, firmID, sectionID, alternativeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func upsertSelection(ctx context.Context, tx *sql.Tx, ocgID, firmID, sectionID, alternativeID string) (*FirmSelection, error) {
	sec, err := getSection(ctx, tx, sectionID)
	if err != nil {
		return nil, err
	}
	if sec == nil || sec.OCGID != ocgID {
		return nil, nil
	}
	alt, err := getAlternative(ctx, tx, alternativeID)
	if err != nil {
		return nil, err
	}
	if alt == nil || alt.SectionID != sectionID {
		return nil, nil
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO ocg_firm_selections (id, ocg_id, firm_id, section_id, alternative_id, points_used)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ocg_id, firm_id, section_id)
		DO UPDATE SET alternative_id=EXCLUDED.alternative_id, points_used=EXCLUDED.points_used, selected_at=NOW()
		RETURNING `+selectionColumns,
		util.NewID("sel"), ocgID, firmID, sectionID, alternativeID, alt.Points)
	sel, err := scanSelection(row)
	if err != nil {
		return nil, fmt.Errorf("upsert firm selection: %w", err)
	}
	return sel, nil
}

// SelectionOutcome reports a budget-checked selection attempt.
type SelectionOutcome struct {
	Selection  *FirmSelection // non-nil only when the selection applied
	Budget     int
	Required   int  // total points the firm would use with the candidate
	Exceeded   bool // budget would be exceeded; nothing was changed
	InvalidRef bool // section/alternative did not belong where claimed
}

// SelectWithinBudget makes the budget check-then-act atomic: the firm's
// selection rows are locked (SELECT ... FOR UPDATE) for the duration of
// the transaction, so two concurrent selects for the same (ocg, firm)
// serialize instead of racing past the check.
func (s *PostgresStore) SelectWithinBudget(ctx context.Context, ocgID, firmID, sectionID, alternativeID string) (*SelectionOutcome, error) {
	out := &SelectionOutcome{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sec, err := getSection(ctx, tx, sectionID)
		if err != nil {
			return err
		}
		if sec == nil || sec.OCGID != ocgID {
			out.InvalidRef = true
			return nil
		}
		alt, err := getAlternative(ctx, tx, alternativeID)
		if err != nil {
			return err
		}
		if alt == nil || alt.SectionID != sectionID {
			out.InvalidRef = true
			return nil
		}

		budget, err := firmPointBudget(ctx, tx, ocgID, firmID)
		if err != nil {
			return err
		}
		out.Budget = budget

		// Lock this firm's selection rows and total them, excluding any
		// prior selection for the same section (it gets replaced).
		rows, err := tx.QueryContext(ctx, `
			SELECT section_id, points_used FROM ocg_firm_selections
			WHERE ocg_id=$1 AND firm_id=$2
			FOR UPDATE`, ocgID, firmID)
		if err != nil {
			return fmt.Errorf("lock firm selections: %w", err)
		}
		used := 0
		for rows.Next() {
			var secID string
			var points int
			if err := rows.Scan(&secID, &points); err != nil {
				rows.Close()
				return fmt.Errorf("scan locked selection: %w", err)
			}
			if secID != sectionID {
				used += points
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate locked selections: %w", err)
		}

		out.Required = used + alt.Points
		if out.Required > budget {
			out.Exceeded = true
			return nil
		}

		sel, err := upsertSelection(ctx, tx, ocgID, firmID, sectionID, alternativeID)
		if err != nil {
			return err
		}
		out.Selection = sel
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) GetSelectionsByFirm(ctx context.Context, ocgID, firmID string) ([]FirmSelection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectionColumns+` FROM ocg_firm_selections WHERE ocg_id=$1 AND firm_id=$2 ORDER BY selected_at`,
		ocgID, firmID)
	if err != nil {
		return nil, fmt.Errorf("list firm selections: %w", err)
	}
	defer rows.Close()
	var out []FirmSelection
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan firm selection: %w", err)
		}
		out = append(out, *sel)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteFirmSelection(ctx context.Context, selectionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ocg_firm_selections WHERE id=$1`, selectionID)
	if err != nil {
		return false, fmt.Errorf("delete firm selection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete firm selection rows: %w", err)
	}
	return n > 0, nil
}

// ClearFirmSelections bulk-deletes a firm's selections, used on
// negotiation reset.
func (s *PostgresStore) ClearFirmSelections(ctx context.Context, ocgID, firmID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM ocg_firm_selections WHERE ocg_id=$1 AND firm_id=$2`, ocgID, firmID)
	if err != nil {
		return fmt.Errorf("clear firm selections: %w", err)
	}
	return nil
}

// ---- Point budgets ----

// GetFirmPointBudget returns the per-firm override when present, else
// the OCG default, else 0 when the OCG itself is unknown.
func (s *PostgresStore) GetFirmPointBudget(ctx context.Context, ocgID, firmID string) (int, error) {
	return firmPointBudget(ctx, s.db, ocgID, firmID)
}

func firmPointBudget(ctx context.Context, q querier, ocgID, firmID string) (int, error) {
	var points int
	err := q.QueryRowContext(ctx,
		`SELECT points FROM ocg_firm_point_budgets WHERE ocg_id=$1 AND firm_id=$2`, ocgID, firmID).Scan(&points)
	if err == nil {
		return points, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("get firm point budget: %w", err)
	}
	ocg, err := getOCG(ctx, q, ocgID)
	if err != nil {
		return 0, err
	}
	if ocg == nil {
		return 0, nil
	}
	return ocg.DefaultFirmPointBudget, nil
}

// SetFirmPointBudget upserts the per-firm override; negative points are
// rejected with a false return.
func (s *PostgresStore) SetFirmPointBudget(ctx context.Context, ocgID, firmID string, points int) (bool, error) {
	if points < 0 {
		return false, nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ocg_firm_point_budgets (ocg_id, firm_id, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (ocg_id, firm_id) DO UPDATE SET points=EXCLUDED.points, updated_at=NOW()`,
		ocgID, firmID, points)
	if err != nil {
		return false, fmt.Errorf("set firm point budget: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) CalculatePointsUsed(ctx context.Context, ocgID, firmID string) (int, error) {
	var used int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points_used), 0) FROM ocg_firm_selections WHERE ocg_id=$1 AND firm_id=$2`,
		ocgID, firmID).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("calculate points used: %w", err)
	}
	return used, nil
}

func (s *PostgresStore) GetRemainingPointBudget(ctx context.Context, ocgID, firmID string) (int, error) {
	budget, err := s.GetFirmPointBudget(ctx, ocgID, firmID)
	if err != nil {
		return 0, err
	}
	used, err := s.CalculatePointsUsed(ctx, ocgID, firmID)
	if err != nil {
		return 0, err
	}
	remaining := budget - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// ---- Versioning ----

// CreateNewVersion deep-clones the OCG into a DRAFT row at version+1:
// same name, points, settings, and an isomorphic section/alternative
// tree, but no firm selections and no budget overrides. Returns nil if
// the source is unknown.
func (s *PostgresStore) CreateNewVersion(ctx context.Context, ocgID string) (*OCG, error) {
	var clone *OCG
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		source, err := getOCG(ctx, tx, ocgID)
		if err != nil {
			return err
		}
		if source == nil {
			return nil
		}
		var maxVersion int
		if err := tx.QueryRowContext(ctx,
			`SELECT MAX(version) FROM ocgs WHERE client_id=$1 AND name=$2`,
			source.ClientID, source.Name).Scan(&maxVersion); err != nil {
			return fmt.Errorf("max version: %w", err)
		}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO ocgs (id, client_id, name, version, status, total_points, default_firm_point_budget, settings)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+ocgColumns,
			util.NewID("ocg"), source.ClientID, source.Name, maxVersion+1,
			string(StatusDraft), source.TotalPoints, source.DefaultFirmPointBudget, []byte(source.Settings))
		clone, err = scanOCG(row)
		if err != nil {
			return fmt.Errorf("insert ocg version: %w", err)
		}

		sections, err := listSections(ctx, tx, ocgID)
		if err != nil {
			return err
		}
		idMap := make(map[string]string, len(sections))
		for _, sec := range sections {
			idMap[sec.ID] = util.NewID("sec")
		}
		for _, sec := range sections {
			var parent *string
			if sec.ParentID != nil {
				if mapped, ok := idMap[*sec.ParentID]; ok {
					parent = &mapped
				}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ocg_sections (id, ocg_id, parent_id, title, content, is_negotiable, sort_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				idMap[sec.ID], clone.ID, parent, sec.Title, sec.Content, sec.IsNegotiable, sec.SortOrder); err != nil {
				return fmt.Errorf("clone section: %w", err)
			}
		}

		alts, err := listAlternativesForOCG(ctx, tx, ocgID)
		if err != nil {
			return err
		}
		for _, alt := range alts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ocg_alternatives (id, section_id, title, content, points, sort_order, is_default)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				util.NewID("alt"), idMap[alt.SectionID], alt.Title, alt.Content, alt.Points, alt.SortOrder, alt.IsDefault); err != nil {
				return fmt.Errorf("clone alternative: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clone, nil
}

func listSections(ctx context.Context, q querier, ocgID string) ([]Section, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+sectionColumns+` FROM ocg_sections WHERE ocg_id=$1 ORDER BY sort_order, created_at`, ocgID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()
	var out []Section
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan section row: %w", err)
		}
		out = append(out, *sec)
	}
	return out, rows.Err()
}

func listAlternativesForOCG(ctx context.Context, q querier, ocgID string) ([]Alternative, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT a.id, a.section_id, a.title, a.content, a.points, a.sort_order, a.is_default, a.created_at, a.updated_at
		FROM ocg_alternatives a
		JOIN ocg_sections s ON s.id = a.section_id
		WHERE s.ocg_id=$1
		ORDER BY a.sort_order, a.created_at`, ocgID)
	if err != nil {
		return nil, fmt.Errorf("list ocg alternatives: %w", err)
	}
	defer rows.Close()
	var out []Alternative
	for rows.Next() {
		alt, err := scanAlternative(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alternative row: %w", err)
		}
		out = append(out, *alt)
	}
	return out, rows.Err()
}

// GetSectionHierarchy is the read path for rendering and the
// negotiation UI: top-level sections with nested subsections and
// alternatives, ordered by sort_order.
func (s *PostgresStore) GetSectionHierarchy(ctx context.Context, ocgID string) ([]SectionNode, error) {
	sections, err := listSections(ctx, s.db, ocgID)
	if err != nil {
		return nil, err
	}
	alts, err := listAlternativesForOCG(ctx, s.db, ocgID)
	if err != nil {
		return nil, err
	}
	bySection := make(map[string][]Alternative)
	for _, alt := range alts {
		bySection[alt.SectionID] = append(bySection[alt.SectionID], alt)
	}
	return buildHierarchy(sections, bySection), nil
}

// ---- Organizations ----

func (s *PostgresStore) CreateOrganization(ctx context.Context, name, orgType, email string) (*Organization, error) {
	var org Organization
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO organizations (id, name, type, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, type, email, created_at, updated_at`,
		util.NewID("org"), name, orgType, email).
		Scan(&org.ID, &org.Name, &org.Type, &org.Email, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert organization: %w", err)
	}
	return &org, nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	var org Organization
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, email, created_at, updated_at FROM organizations WHERE id=$1`, orgID).
		Scan(&org.ID, &org.Name, &org.Type, &org.Email, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

// ---- Message threads ----

// EnsureThread returns the thread for (contextType, contextID), creating
// it on first use.
func (s *PostgresStore) EnsureThread(ctx context.Context, contextType, contextID string) (*MessageThread, error) {
	var th MessageThread
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO message_threads (id, context_type, context_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (context_type, context_id) DO UPDATE SET context_type=EXCLUDED.context_type
		RETURNING id, context_type, context_id, created_at`,
		util.NewID("th"), contextType, contextID).
		Scan(&th.ID, &th.ContextType, &th.ContextID, &th.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure thread: %w", err)
	}
	return &th, nil
}

func (s *PostgresStore) GetThreadByContext(ctx context.Context, contextType, contextID string) (*MessageThread, error) {
	var th MessageThread
	err := s.db.QueryRowContext(ctx,
		`SELECT id, context_type, context_id, created_at FROM message_threads WHERE context_type=$1 AND context_id=$2`,
		contextType, contextID).
		Scan(&th.ID, &th.ContextType, &th.ContextID, &th.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return &th, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, msg Message) (*Message, error) {
	recipients, err := json.Marshal(msg.RecipientIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal recipients: %w", err)
	}
	if msg.ID == "" {
		msg.ID = util.NewID("msg")
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, thread_id, sender_id, recipient_ids, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		msg.ID, msg.ThreadID, msg.SenderID, recipients, msg.Content).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, sender_id, recipient_ids, content, created_at FROM messages WHERE thread_id=$1 ORDER BY created_at`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var msg Message
		var recipients []byte
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.SenderID, &recipients, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(recipients) > 0 {
			if err := json.Unmarshal(recipients, &msg.RecipientIDs); err != nil {
				return nil, fmt.Errorf("unmarshal recipients: %w", err)
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
