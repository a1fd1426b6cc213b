// Package catalog persists books in PostgreSQL.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/domain/book"
)

// conn is the consumer interface over a pgx pool or transaction (ISP).
type conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id         BIGSERIAL PRIMARY KEY,
	title      TEXT        NOT NULL,
	genre      TEXT        NOT NULL DEFAULT '',
	file_ref   TEXT        NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	insertBook = `INSERT INTO books (title, genre, file_ref) VALUES ($1, $2, $3) RETURNING id`
	selectBook = `SELECT id, title, genre, file_ref FROM books WHERE id = $1`
	updateBook = `UPDATE books SET title = $2, genre = $3, file_ref = $4, updated_at = now() WHERE id = $1`
	deleteBook = `DELETE FROM books WHERE id = $1`
	listBooks  = `SELECT id, title, genre, file_ref FROM books WHERE id > $1 ORDER BY id LIMIT $2`
)

// Repo implements usecase/catalog.Repository.
type Repo struct {
	db conn
}

// New creates a catalog repository.
func New(db conn) *Repo {
	return &Repo{db: db}
}

// Migrate creates the books table if it does not exist.
func (r *Repo) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate books: %w", err)
	}
	return nil
}

// Create inserts b and returns it with its assigned id.
func (r *Repo) Create(ctx context.Context, b book.Book) (book.Book, error) {
	var id int64
	if err := r.db.QueryRow(ctx, insertBook, b.Title(), b.Genre(), b.FileRef()).Scan(&id); err != nil {
		return book.Book{}, fmt.Errorf("insert book: %w", err)
	}
	return b.WithID(id), nil
}

// Get loads a book by id.
func (r *Repo) Get(ctx context.Context, id int64) (book.Book, error) {
	b, err := scanBook(r.db.QueryRow(ctx, selectBook, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return book.Book{}, domain.ErrBookNotFound
		}
		return book.Book{}, fmt.Errorf("get book %d: %w", id, err)
	}
	return b, nil
}

// Update overwrites the stored fields of b.
func (r *Repo) Update(ctx context.Context, b book.Book) error {
	tag, err := r.db.Exec(ctx, updateBook, b.ID(), b.Title(), b.Genre(), b.FileRef())
	if err != nil {
		return fmt.Errorf("update book %d: %w", b.ID(), err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

// Delete removes a book by id.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, deleteBook, id)
	if err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

// List returns up to limit books with id greater than afterID, ordered by id.
func (r *Repo) List(ctx context.Context, afterID int64, limit int) ([]book.Book, error) {
	rows, err := r.db.Query(ctx, listBooks, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []book.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func scanBook(row pgx.Row) (book.Book, error) {
	var (
		id                    int64
		title, genre, fileRef string
	)
	if err := row.Scan(&id, &title, &genre, &fileRef); err != nil {
		return book.Book{}, err
	}
	return book.Reconstruct(id, title, genre, fileRef), nil
}
