package store

import (
	"database/sql"
	"fmt"
)

// SaveNote writes a note and its complete link set in one transaction. The
// previous link rows of the note are replaced, never merged, so a reader never
// sees a mix of old and new links. The note's ID is set on return.
func (s *Store) SaveNote(n *Note, links []Link) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save note: begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(
		`INSERT INTO notes (name, kind, path, version, state, hash, line_count, last_indexed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name, kind) DO UPDATE SET
		   path = excluded.path,
		   version = excluded.version,
		   state = excluded.state,
		   hash = excluded.hash,
		   line_count = excluded.line_count,
		   last_indexed = excluded.last_indexed
		 RETURNING id`,
		n.Name, n.Kind, n.Path, n.Version, n.State, n.Hash, n.LineCount, n.LastIndexed,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("save note %s: %w", n.Name, err)
	}

	if _, err := tx.Exec("DELETE FROM links WHERE note_id = ?", id); err != nil {
		return fmt.Errorf("save note %s: delete links: %w", n.Name, err)
	}
	for i := range links {
		l := &links[i]
		l.NoteID = id
		res, err := tx.Exec(
			`INSERT INTO links (note_id, target, target_name, target_kind, start_line, start_col, end_line, end_col)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, l.Target, nullableString(l.TargetName), nullableString(l.TargetKind),
			l.StartLine, l.StartCol, l.EndLine, l.EndCol,
		)
		if err != nil {
			return fmt.Errorf("save note %s: insert link %q: %w", n.Name, l.Target, err)
		}
		if l.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("save note %s: last insert id: %w", n.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save note %s: commit: %w", n.Name, err)
	}
	n.ID = id
	return nil
}

// DeleteNote removes a note and its links.
func (s *Store) DeleteNote(name, kind string) error {
	if _, err := s.db.Exec("DELETE FROM notes WHERE name = ? AND kind = ?", name, kind); err != nil {
		return fmt.Errorf("delete note %s: %w", name, err)
	}
	return nil
}

const noteColumns = "id, name, kind, path, version, state, COALESCE(hash, ''), COALESCE(line_count, 0), last_indexed"

func scanNote(row interface{ Scan(...any) error }, n *Note) error {
	var lastIndexed sql.NullTime
	if err := row.Scan(&n.ID, &n.Name, &n.Kind, &n.Path, &n.Version, &n.State, &n.Hash, &n.LineCount, &lastIndexed); err != nil {
		return err
	}
	if lastIndexed.Valid {
		n.LastIndexed = lastIndexed.Time
	}
	return nil
}

// NoteByIdentity returns the note with the given name and kind, or nil.
func (s *Store) NoteByIdentity(name, kind string) (*Note, error) {
	n := &Note{}
	err := scanNote(s.db.QueryRow("SELECT "+noteColumns+" FROM notes WHERE name = ? AND kind = ?", name, kind), n)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("note by identity: %w", err)
	}
	return n, nil
}

// Notes returns every note ordered by name, then kind.
func (s *Store) Notes() ([]*Note, error) {
	rows, err := s.db.Query("SELECT " + noteColumns + " FROM notes ORDER BY name, kind")
	if err != nil {
		return nil, fmt.Errorf("notes: %w", err)
	}
	defer rows.Close()
	var out []*Note
	for rows.Next() {
		n := &Note{}
		if err := scanNote(rows, n); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const linkColumns = "l.id, l.note_id, l.target, l.target_name, l.target_kind, l.start_line, l.start_col, l.end_line, l.end_col"

func scanLink(row interface{ Scan(...any) error }, l *Link, extra ...any) error {
	var name, kind sql.NullString
	dest := append([]any{&l.ID, &l.NoteID, &l.Target, &name, &kind, &l.StartLine, &l.StartCol, &l.EndLine, &l.EndCol}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	l.TargetName = stringPtr(name)
	l.TargetKind = stringPtr(kind)
	return nil
}

// LinksByNote returns the link occurrences of a note in document order.
func (s *Store) LinksByNote(noteID int64) ([]*Link, error) {
	rows, err := s.db.Query(
		"SELECT "+linkColumns+" FROM links l WHERE l.note_id = ? ORDER BY l.start_line, l.start_col", noteID,
	)
	if err != nil {
		return nil, fmt.Errorf("links by note: %w", err)
	}
	defer rows.Close()
	var out []*Link
	for rows.Next() {
		l := &Link{}
		if err := scanLink(rows, l); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Backlinks returns every link occurrence that targets (name, kind), with the
// note containing it, ordered by source note then position.
func (s *Store) Backlinks(name, kind string) ([]*Backlink, error) {
	rows, err := s.db.Query(
		`SELECT `+linkColumns+`, n.id, n.name, n.kind, n.path, n.version, n.state
		 FROM links l JOIN notes n ON n.id = l.note_id
		 WHERE l.target_name = ? AND l.target_kind = ?
		 ORDER BY n.name, n.kind, l.start_line, l.start_col`,
		name, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("backlinks: %w", err)
	}
	defer rows.Close()
	var out []*Backlink
	for rows.Next() {
		b := &Backlink{}
		src := &b.Source
		if err := scanLink(rows, &b.Link, &src.ID, &src.Name, &src.Kind, &src.Path, &src.Version, &src.State); err != nil {
			return nil, fmt.Errorf("scan backlink: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Stats counts notes and links. A dangling target is a distinct resolved
// target that has no note row.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.QueryRow(
		`SELECT
		   (SELECT COUNT(*) FROM notes),
		   (SELECT COUNT(*) FROM links),
		   (SELECT COUNT(*) FROM links WHERE target_name IS NOT NULL),
		   (SELECT COUNT(*) FROM (
		      SELECT DISTINCT l.target_name, l.target_kind FROM links l
		      LEFT JOIN notes n ON n.name = l.target_name AND n.kind = l.target_kind
		      WHERE l.target_name IS NOT NULL AND n.id IS NULL))`,
	).Scan(&st.Notes, &st.Links, &st.ResolvedLinks, &st.DanglingTargets)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
