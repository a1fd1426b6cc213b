package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/shelfindex/internal/db"
)

var unknownIndexReplies = []string{"unknown index name", "no such index"}

// CreateIndex issues FT.CREATE for def.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := createArgs(def)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	err = s.do(ctx, s.b().Arbitrary("FT.CREATE").Args(args...).Build()).Error()
	if serverErrorContains(err, "index already exists") {
		return db.ErrIndexExists
	}
	return db.Wrap(db.OpCreateIndex, def.Name, err)
}

// DropIndex issues FT.DROPINDEX without DD, so document hashes survive.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	err := s.do(ctx, s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()).Error()
	if serverErrorContains(err, unknownIndexReplies...) {
		return db.ErrIndexNotFound
	}
	return db.Wrap(db.OpDropIndex, name, err)
}

// IndexExists reports whether FT.INFO knows the index.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	_, err := s.IndexInfo(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, db.ErrIndexNotFound):
		return false, nil
	default:
		return false, err
	}
}

// IndexInfo reads the document count and build state from FT.INFO.
func (s *Store) IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error) {
	reply, err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).ToArray()
	if err != nil {
		if serverErrorContains(err, unknownIndexReplies...) {
			return nil, db.ErrIndexNotFound
		}
		return nil, db.Wrap(db.OpIndexInfo, name, err)
	}

	info := &db.IndexInfo{Name: name}
	for i := 0; i+1 < len(reply); i += 2 {
		key, err := reply[i].ToString()
		if err != nil {
			continue
		}
		switch key {
		case "num_docs":
			info.NumDocs = infoNumber(&reply[i+1])
		case "indexing":
			info.Indexing = infoNumber(&reply[i+1]) != 0
		}
	}
	return info, nil
}

// infoNumber reads a counter that different engine versions report as an
// integer, a bulk string or a double.
func infoNumber(m *rueidis.RedisMessage) int64 {
	if n, err := m.AsInt64(); err == nil {
		return n
	}
	if f, err := m.AsFloat64(); err == nil {
		return int64(f)
	}
	return 0
}

// ftCreate accumulates FT.CREATE arguments.
type ftCreate []string

func (a *ftCreate) add(args ...string) { *a = append(*a, args...) }

func createArgs(def *db.IndexDefinition) ([]string, error) {
	if def.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(def.Fields) == 0 {
		return nil, fmt.Errorf("index %s has no fields", def.Name)
	}

	var a ftCreate
	a.add(def.Name, "ON", "HASH")
	if n := len(def.Prefixes); n > 0 {
		a.add("PREFIX", strconv.Itoa(n))
		a.add(def.Prefixes...)
	}
	// Stop words are removed by the query expander, not the engine, so a
	// strict search for "the" still matches.
	if def.NoStopWords {
		a.add("STOPWORDS", "0")
	}

	a.add("SCHEMA")
	for i := range def.Fields {
		if err := a.field(&def.Fields[i]); err != nil {
			return nil, fmt.Errorf("index %s: %w", def.Name, err)
		}
	}
	return a, nil
}

func (a *ftCreate) field(f *db.IndexField) error {
	if f.Name == "" {
		return errors.New("field name is required")
	}
	a.add(f.Name)
	if f.Alias != "" {
		a.add("AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldNumeric:
		a.add("NUMERIC")
	case db.IndexFieldText:
		a.add("TEXT")
		if f.TextWeight > 0 {
			a.add("WEIGHT", strconv.FormatFloat(f.TextWeight, 'f', -1, 64))
		}
	case db.IndexFieldVector:
		attrs, err := vectorAttrs(f)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		algo := f.VectorAlgo
		if algo == "" {
			algo = db.VectorFlat
		}
		a.add("VECTOR", string(algo), strconv.Itoa(len(attrs)))
		a.add(attrs...)
	default:
		return fmt.Errorf("field %s: unknown type %d", f.Name, f.Type)
	}
	return nil
}

// vectorAttrs are the counted attribute pairs after VECTOR <algo> <n>.
// Book embeddings are unit length, so IP is the default metric.
func vectorAttrs(f *db.IndexField) ([]string, error) {
	if f.VectorDim <= 0 {
		return nil, fmt.Errorf("vector DIM must be positive, got %d", f.VectorDim)
	}
	distance := f.VectorDistance
	if distance == "" {
		distance = db.DistanceIP
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}
	optional := func(name string, v int) {
		if v > 0 {
			attrs = append(attrs, name, strconv.Itoa(v))
		}
	}
	switch f.VectorAlgo {
	case db.VectorHNSW:
		optional("M", f.VectorM)
		optional("EF_CONSTRUCTION", f.VectorEFConstruct)
	case db.VectorFlat, "":
		optional("BLOCK_SIZE", f.VectorBlockSize)
	}
	return attrs, nil
}
