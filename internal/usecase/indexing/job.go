package indexing

import (
	"errors"
	"fmt"
)

// Kind names what a job does.
type Kind string

// Job kinds.
const (
	KindIndex   Kind = "index"
	KindDeindex Kind = "deindex"
)

// Job is a unit of work for the indexing queue.
type Job struct {
	Kind       Kind
	DocumentID int64
	Category   string
	FileRef    string
}

// IndexJob (re)indexes the file of a book.
func IndexJob(id int64, category, fileRef string) Job {
	return Job{Kind: KindIndex, DocumentID: id, Category: category, FileRef: fileRef}
}

// DeindexJob removes a book from the index.
func DeindexJob(id int64) Job {
	return Job{Kind: KindDeindex, DocumentID: id}
}

// Validate checks that the job can run.
func (j Job) Validate() error {
	if j.DocumentID <= 0 {
		return fmt.Errorf("job document ID must be positive, got %d", j.DocumentID)
	}
	switch j.Kind {
	case KindIndex:
		if j.FileRef == "" {
			return errors.New("index job requires a file reference")
		}
	case KindDeindex:
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	return nil
}
