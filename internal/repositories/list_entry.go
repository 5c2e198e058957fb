package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/malsync/internal/dbx"
	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/schema"
	"github.com/desertthunder/malsync/internal/shared"
)

// ApplyOutcome says what [ListEntryRepository.ApplyRemote] did with a pulled record.
type ApplyOutcome int

const (
	// Inserted means the record was new locally.
	Inserted ApplyOutcome = iota
	// Overwritten means a clean local row took the remote value whole.
	Overwritten
	// MergeConflictSkipped means the local row is dirty: only server-owned
	// fields were refreshed and the user's edits were kept.
	MergeConflictSkipped
)

func (o ApplyOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Overwritten:
		return "overwritten"
	case MergeConflictSkipped:
		return "conflict-skipped"
	default:
		return fmt.Sprintf("ApplyOutcome(%d)", int(o))
	}
}

// ListEntryRepository implements models.Repository[*models.ListEntry, int64]
// over the anime or manga table.
//
// Rows are keyed by recordID. Every write path keeps lastUpdate from moving
// backwards, and only [ListEntryRepository.ApplyRemote] decides how a pulled
// record meets a dirty row.
type ListEntryRepository struct {
	db       dbx.DBTX
	kind     models.Kind
	table    string
	progress []string
	logger   *log.Logger
}

var _ models.Repository[*models.ListEntry, int64] = (*ListEntryRepository)(nil)

// NewListEntryRepository creates a repository for one list kind.
func NewListEntryRepository(db dbx.DBTX, kind models.Kind, logger *log.Logger) *ListEntryRepository {
	r := &ListEntryRepository{db: db, kind: kind, logger: shared.WithLogger(logger, "table", string(kind))}
	switch kind {
	case models.KindManga:
		r.table = schema.TableManga
		r.progress = []string{"chaptersRead", "chaptersTotal", "volumesRead", "volumesTotal"}
	default:
		r.kind = models.KindAnime
		r.table = schema.TableAnime
		r.progress = []string{"episodesWatched", "episodesTotal"}
	}
	return r
}

// Kind returns the list kind this repository serves.
func (r *ListEntryRepository) Kind() models.Kind { return r.kind }

// writeColumns are the columns every write sets, in bind order.
func (r *ListEntryRepository) writeColumns() []string {
	cols := []string{"recordID", "recordName", "recordType", "imageUrl", "recordStatus", "myStatus", "memberScore", "myScore", "synopsis"}
	cols = append(cols, r.progress...)
	return append(cols, "dirty", "lastUpdate")
}

func (r *ListEntryRepository) writeArgs(e *models.ListEntry) []any {
	args := []any{e.RecordID, e.Title, e.Type, e.ImageURL, e.Status, e.MyStatus, e.MemberScore, e.MyScore, e.Synopsis}
	args = append(args, r.progressValues(e)...)
	return append(args, e.Dirty, e.LastUpdate)
}

func (r *ListEntryRepository) progressValues(e *models.ListEntry) []any {
	if r.kind == models.KindManga {
		return []any{e.ChaptersRead, e.ChaptersTotal, e.VolumesRead, e.VolumesTotal}
	}
	return []any{e.EpisodesWatched, e.EpisodesTotal}
}

func (r *ListEntryRepository) progressTargets(e *models.ListEntry) []any {
	if r.kind == models.KindManga {
		return []any{&e.ChaptersRead, &e.ChaptersTotal, &e.VolumesRead, &e.VolumesTotal}
	}
	return []any{&e.EpisodesWatched, &e.EpisodesTotal}
}

// selectList tolerates NULLs left behind by rows written under older schemas.
func (r *ListEntryRepository) selectList() string {
	cols := []string{
		"_id", "recordID",
		"COALESCE(recordName, '')", "COALESCE(recordType, '')", "COALESCE(imageUrl, '')",
		"COALESCE(recordStatus, '')", "COALESCE(myStatus, '')",
		"COALESCE(CAST(memberScore AS REAL), 0)", "COALESCE(myScore, 0)", "COALESCE(synopsis, '')",
	}
	for _, p := range r.progress {
		cols = append(cols, fmt.Sprintf("COALESCE(%s, 0)", p))
	}
	cols = append(cols, "COALESCE(dirty, 0)", "lastUpdate")
	return strings.Join(cols, ", ")
}

func (r *ListEntryRepository) scan(row interface{ Scan(...any) error }) (*models.ListEntry, error) {
	e := &models.ListEntry{Kind: r.kind}
	targets := []any{
		&e.ID, &e.RecordID, &e.Title, &e.Type, &e.ImageURL, &e.Status, &e.MyStatus,
		&e.MemberScore, &e.MyScore, &e.Synopsis,
	}
	targets = append(targets, r.progressTargets(e)...)
	targets = append(targets, &e.Dirty, &e.LastUpdate)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *ListEntryRepository) prepare(e *models.ListEntry) error {
	if e.Kind == "" {
		e.Kind = r.kind
	}
	if e.Kind != r.kind {
		return fmt.Errorf("%w: %s entry written to %s table", shared.ErrInvalidInput, e.Kind, r.table)
	}
	if e.LastUpdate == 0 {
		e.LastUpdate = schema.HistoricalEpoch
	}
	return e.Validate()
}

// Upsert inserts e, or replaces every field of the row with the same recordID.
// The surrogate id is kept and lastUpdate never decreases. The caller decides
// the dirty flag. A non-zero e.ID that belongs to another record is a
// constraint violation.
func (r *ListEntryRepository) Upsert(ctx context.Context, e *models.ListEntry) error {
	if err := r.prepare(e); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := r.checkSurrogate(ctx, e); err != nil {
		return err
	}

	cols := r.writeColumns()
	updates := make([]string, 0, len(cols))
	for _, c := range cols {
		switch c {
		case "recordID":
		case "lastUpdate":
			updates = append(updates, "lastUpdate = MAX(lastUpdate, excluded.lastUpdate)")
		default:
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(recordID) DO UPDATE SET %s`,
		r.table, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(updates, ", "))

	if _, err := r.db.ExecContext(ctx, query, r.writeArgs(e)...); err != nil {
		return fmt.Errorf("failed to upsert %s entry %d: %w", r.kind, e.RecordID, err)
	}
	return r.refresh(ctx, e)
}

// Insert is the raw insert path. A record whose recordID already exists is
// routed through [ListEntryRepository.Upsert] instead of failing.
func (r *ListEntryRepository) Insert(ctx context.Context, e *models.ListEntry) error {
	if err := r.prepare(e); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	cols := r.writeColumns()
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, r.table, strings.Join(cols, ", "), placeholders(len(cols)))
	result, err := r.db.ExecContext(ctx, query, r.writeArgs(e)...)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Debug("insert hit existing record, upserting", "record_id", e.RecordID)
			return r.Upsert(ctx, e)
		}
		return fmt.Errorf("failed to insert %s entry %d: %w", r.kind, e.RecordID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted id: %w", err)
	}
	e.ID = id
	return nil
}

func (r *ListEntryRepository) checkSurrogate(ctx context.Context, e *models.ListEntry) error {
	if e.ID == 0 {
		return nil
	}
	var owner int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT recordID FROM %s WHERE _id = ?`, r.table), e.ID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check surrogate id: %w", err)
	}
	if owner != e.RecordID {
		return fmt.Errorf("%w: %s row %d holds record %d, not %d",
			shared.ErrConstraintViolation, r.kind, e.ID, owner, e.RecordID)
	}
	return nil
}

// refresh reloads the stored surrogate id and lastUpdate into e.
func (r *ListEntryRepository) refresh(ctx context.Context, e *models.ListEntry) error {
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT _id, lastUpdate FROM %s WHERE recordID = ?`, r.table), e.RecordID,
	).Scan(&e.ID, &e.LastUpdate)
	if err != nil {
		return fmt.Errorf("failed to reload %s entry %d: %w", r.kind, e.RecordID, err)
	}
	return nil
}

// Get returns the entry with the given recordID, or nil when there is none.
func (r *ListEntryRepository) Get(ctx context.Context, recordID int64) (*models.ListEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE recordID = ?`, r.selectList(), r.table)
	e, err := r.scan(r.db.QueryRowContext(ctx, query, recordID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s entry %d: %w", r.kind, recordID, err)
	}
	return e, nil
}

// List returns every entry in insertion order.
func (r *ListEntryRepository) List(ctx context.Context) ([]*models.ListEntry, error) {
	return r.query(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY _id ASC`, r.selectList(), r.table))
}

// ListDirty returns the entries waiting to be pushed, in insertion order.
func (r *ListEntryRepository) ListDirty(ctx context.Context) ([]*models.ListEntry, error) {
	return r.query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE dirty = 1 ORDER BY _id ASC`, r.selectList(), r.table))
}

func (r *ListEntryRepository) query(ctx context.Context, query string, args ...any) ([]*models.ListEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s entries: %w", r.kind, err)
	}
	defer rows.Close()

	var entries []*models.ListEntry
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s entry: %w", r.kind, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s entries: %w", r.kind, err)
	}
	return entries, nil
}

// Count returns the number of entries.
func (r *ListEntryRepository) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.db, r.table)
}

// Delete removes the entry with the given recordID.
func (r *ListEntryRepository) Delete(ctx context.Context, recordID int64) error {
	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE recordID = ?`, r.table), recordID)
	if err != nil {
		return fmt.Errorf("failed to delete %s entry %d: %w", r.kind, recordID, err)
	}
	return expectOne(result, fmt.Sprintf("%s entry %d", r.kind, recordID))
}

// MarkDirty flags the entry as locally modified at the given unix time.
func (r *ListEntryRepository) MarkDirty(ctx context.Context, recordID, at int64) error {
	return r.setDirty(ctx, recordID, true, at)
}

// ClearDirty records a successful push at the given unix time.
func (r *ListEntryRepository) ClearDirty(ctx context.Context, recordID, at int64) error {
	return r.setDirty(ctx, recordID, false, at)
}

// ClearDirtyIfUnchanged clears the dirty flag only if the row still holds the
// user fields that were pushed, so an edit made while the push was in flight
// stays dirty whatever the clock resolution. It reports whether the flag was
// cleared.
func (r *ListEntryRepository) ClearDirtyIfUnchanged(ctx context.Context, pushed *models.ListEntry, at int64) (bool, error) {
	where := []string{"recordID = ?", "dirty = 1", "myStatus = ?", "myScore = ?"}
	args := []any{at, pushed.RecordID, pushed.MyStatus, pushed.MyScore}
	for _, c := range r.userProgress() {
		where = append(where, c+" = ?")
	}
	args = append(args, userProgressValues(pushed, r.kind)...)

	query := fmt.Sprintf(`UPDATE %s SET dirty = 0, lastUpdate = MAX(lastUpdate, ?) WHERE %s`, r.table, strings.Join(where, " AND "))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to clear dirty flag of %s entry %d: %w", r.kind, pushed.RecordID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// userProgress lists the progress columns the user edits.
func (r *ListEntryRepository) userProgress() []string {
	if r.kind == models.KindManga {
		return []string{"chaptersRead", "volumesRead"}
	}
	return []string{"episodesWatched"}
}

func userProgressValues(e *models.ListEntry, kind models.Kind) []any {
	if kind == models.KindManga {
		return []any{e.ChaptersRead, e.VolumesRead}
	}
	return []any{e.EpisodesWatched}
}

func (r *ListEntryRepository) setDirty(ctx context.Context, recordID int64, dirty bool, at int64) error {
	query := fmt.Sprintf(`UPDATE %s SET dirty = ?, lastUpdate = MAX(lastUpdate, ?) WHERE recordID = ?`, r.table)
	result, err := r.db.ExecContext(ctx, query, dirty, at, recordID)
	if err != nil {
		return fmt.Errorf("failed to update dirty flag of %s entry %d: %w", r.kind, recordID, err)
	}
	return expectOne(result, fmt.Sprintf("%s entry %d", r.kind, recordID))
}

// ApplyRemote writes a pulled record. An absent or clean local row takes the
// remote value whole, with dirty cleared and lastUpdate set to at. A dirty
// local row only has its server-owned fields refreshed.
//
// Run it inside the pass's transaction so a batch lands all at once.
func (r *ListEntryRepository) ApplyRemote(ctx context.Context, remote *models.ListEntry, at int64) (ApplyOutcome, error) {
	local, err := r.Get(ctx, remote.RecordID)
	if err != nil {
		return 0, err
	}

	if local == nil || !local.Dirty {
		row := remote.Clone()
		row.ID = 0
		row.Kind = r.kind
		row.Dirty = false
		row.LastUpdate = at
		if err := r.Upsert(ctx, row); err != nil {
			return 0, err
		}
		if local == nil {
			return Inserted, nil
		}
		return Overwritten, nil
	}

	local.MergeServerFields(remote)
	if err := r.updateServerFields(ctx, local); err != nil {
		return 0, err
	}
	r.logger.Debug("kept local edits over remote value",
		"record_id", remote.RecordID, "reason", shared.ErrSyncConflictSkipped)
	return MergeConflictSkipped, nil
}

func (r *ListEntryRepository) updateServerFields(ctx context.Context, e *models.ListEntry) error {
	sets := []string{"recordName = ?", "recordType = ?", "imageUrl = ?", "recordStatus = ?", "memberScore = ?", "synopsis = ?"}
	args := []any{e.Title, e.Type, e.ImageURL, e.Status, e.MemberScore, e.Synopsis}
	if r.kind == models.KindManga {
		sets = append(sets, "chaptersTotal = ?", "volumesTotal = ?")
		args = append(args, e.ChaptersTotal, e.VolumesTotal)
	} else {
		sets = append(sets, "episodesTotal = ?")
		args = append(args, e.EpisodesTotal)
	}
	args = append(args, e.RecordID)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE recordID = ?`, r.table, strings.Join(sets, ", "))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to refresh server fields of %s entry %d: %w", r.kind, e.RecordID, err)
	}
	return expectOne(result, fmt.Sprintf("%s entry %d", r.kind, e.RecordID))
}
