// server/store/postgres/postgres.go

// Package postgres stores notes and folders in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ViniZap4/lumi-notes/domain"
	"github.com/ViniZap4/lumi-notes/richtext"
	"github.com/ViniZap4/lumi-notes/store"
)

const noteColumns = `id::text, title, content, is_pinned, folder_id::text, created_at`

type Store struct {
	pool *pgxpool.Pool
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.FolderRemover = (*Store)(nil)
)

func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) GetNote(ctx context.Context, id string) (*domain.Note, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id)
	n, err := scanNote(row)
	if err != nil {
		return nil, mapError(err, domain.NoteNotFound(id))
	}
	return n, nil
}

func (s *Store) ListNotes(ctx context.Context) ([]*domain.Note, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+noteColumns+` FROM notes ORDER BY is_pinned DESC, created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *Store) InsertNote(ctx context.Context, nn domain.NewNote) (*domain.Note, error) {
	content := nn.Content
	if content == nil {
		content = richtext.BlankJSON()
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO notes (id, title, content, is_pinned, folder_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+noteColumns,
		uuid.NewString(), nn.Title, []byte(content), nn.IsPinned, nn.FolderID)
	n, err := scanNote(row)
	if err != nil {
		missing := ""
		if nn.FolderID != nil {
			missing = *nn.FolderID
		}
		return nil, mapError(err, domain.FolderNotFound(missing))
	}
	return n, nil
}

func (s *Store) UpdateNote(ctx context.Context, id string, patch domain.NotePatch) error {
	if patch.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Content != nil {
		add("content", []byte(patch.Content))
	}
	if patch.IsPinned != nil {
		add("is_pinned", *patch.IsPinned)
	}
	switch {
	case patch.ClearFolder:
		sets = append(sets, "folder_id = NULL")
	case patch.FolderID != nil:
		add("folder_id", *patch.FolderID)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE notes SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		if isCode(err, pgerrcode.ForeignKeyViolation) && patch.FolderID != nil {
			return domain.FolderNotFound(*patch.FolderID)
		}
		return mapError(err, domain.NoteNotFound(id))
	}
	if tag.RowsAffected() == 0 {
		return domain.NoteNotFound(id)
	}
	return nil
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return mapError(err, domain.NoteNotFound(id))
	}
	if tag.RowsAffected() == 0 {
		return domain.NoteNotFound(id)
	}
	return nil
}

func (s *Store) ReassignFolder(ctx context.Context, folderID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE notes SET folder_id = NULL WHERE folder_id = $1`, folderID)
	if err != nil {
		return 0, mapError(err, domain.FolderNotFound(folderID))
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListFolders(ctx context.Context) ([]*domain.Folder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, name, created_at FROM folders ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []*domain.Folder
	for rows.Next() {
		var f domain.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, &f)
	}
	return folders, rows.Err()
}

func (s *Store) InsertFolder(ctx context.Context, name string) (*domain.Folder, error) {
	name, err := domain.FolderName(name)
	if err != nil {
		return nil, err
	}

	var f domain.Folder
	err = s.pool.QueryRow(ctx,
		`INSERT INTO folders (id, name) VALUES ($1, $2) RETURNING id::text, name, created_at`,
		uuid.NewString(), name).Scan(&f.ID, &f.Name, &f.CreatedAt)
	if err != nil {
		return nil, mapError(err, nil)
	}
	return &f, nil
}

func (s *Store) RenameFolder(ctx context.Context, id, name string) error {
	name, err := domain.FolderName(name)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `UPDATE folders SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return mapError(err, domain.FolderNotFound(id))
	}
	if tag.RowsAffected() == 0 {
		return domain.FolderNotFound(id)
	}
	return nil
}

func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return mapError(err, domain.FolderNotFound(id))
	}
	if tag.RowsAffected() == 0 {
		return domain.FolderNotFound(id)
	}
	return nil
}

// RemoveFolder reassigns the folder's notes and deletes it in one
// transaction.
func (s *Store) RemoveFolder(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE notes SET folder_id = NULL WHERE folder_id = $1`, id); err != nil {
			return mapError(err, domain.FolderNotFound(id))
		}
		tag, err := tx.Exec(ctx, `DELETE FROM folders WHERE id = $1`, id)
		if err != nil {
			return mapError(err, domain.FolderNotFound(id))
		}
		if tag.RowsAffected() == 0 {
			return domain.FolderNotFound(id)
		}
		return nil
	})
}

func scanNote(row pgx.Row) (*domain.Note, error) {
	var (
		n       domain.Note
		content []byte
	)
	if err := row.Scan(&n.ID, &n.Title, &content, &n.IsPinned, &n.FolderID, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Content = content
	return &n, nil
}

func isCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// mapError translates driver errors into domain errors. notFound is returned
// for missing rows and for ids that are not valid uuids.
func mapError(err error, notFound error) error {
	if notFound != nil && errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.InvalidTextRepresentation:
		if notFound != nil {
			return notFound
		}
	case pgerrcode.ForeignKeyViolation:
		if notFound != nil {
			return notFound
		}
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return &domain.ValidationError{Field: pgErr.ColumnName, Message: pgErr.Message}
	}
	return fmt.Errorf("postgres %s: %w", pgErr.Code, err)
}
