package db

import (
	"fmt"
	"strconv"
	"strings"
)

// IndexBuilder assembles an IndexDefinition field by field.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts a definition named name.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

func (b *IndexBuilder) add(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Prefix restricts the index to hashes under the given key prefixes.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// NoStopWords makes the engine index every word.
func (b *IndexBuilder) NoStopWords() *IndexBuilder {
	b.def.NoStopWords = true
	return b
}

func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldNumeric})
}

// Text adds a TEXT field at the engine's default weight.
func (b *IndexBuilder) Text(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldText})
}

// TextWeighted adds a TEXT field whose term matches score weight times a
// default field's.
func (b *IndexBuilder) TextWeighted(name string, weight float64) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldText, TextWeight: weight})
}

// VectorHNSW adds an HNSW vector field queried as alias. Zero m or
// efConstruct keeps the engine default.
func (b *IndexBuilder) VectorHNSW(name, alias string, dim int, distance DistanceMetric, m, efConstruct int) *IndexBuilder {
	return b.add(IndexField{
		Name: name, Alias: alias, Type: IndexFieldVector,
		VectorAlgo: VectorHNSW, VectorDim: dim, VectorDistance: distance,
		VectorM: m, VectorEFConstruct: efConstruct,
	})
}

// VectorFlat adds a brute-force vector field queried as alias.
func (b *IndexBuilder) VectorFlat(name, alias string, dim int, distance DistanceMetric, blockSize int) *IndexBuilder {
	return b.add(IndexField{
		Name: name, Alias: alias, Type: IndexFieldVector,
		VectorAlgo: VectorFlat, VectorDim: dim, VectorDistance: distance,
		VectorBlockSize: blockSize,
	})
}

// Build validates the definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	return &def, nil
}

// MustBuild is Build for definitions known to be valid; it panics otherwise.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// String summarizes the schema in one line for logs, e.g.
//
//	books:idx on books:* [id numeric, category text^3, content text] stopwords=off
func (idx *IndexDefinition) String() string {
	var sb strings.Builder
	sb.WriteString(idx.Name)

	if len(idx.Prefixes) > 0 {
		globs := make([]string, len(idx.Prefixes))
		for i, p := range idx.Prefixes {
			globs[i] = p + "*"
		}
		sb.WriteString(" on " + strings.Join(globs, ","))
	}

	fields := make([]string, len(idx.Fields))
	for i := range idx.Fields {
		fields[i] = idx.Fields[i].summary()
	}
	sb.WriteString(" [" + strings.Join(fields, ", ") + "]")

	if idx.NoStopWords {
		sb.WriteString(" stopwords=off")
	}
	return sb.String()
}

func (f *IndexField) summary() string {
	name := f.Name
	if f.Alias != "" {
		name = f.Alias + "=" + f.Name
	}
	switch f.Type {
	case IndexFieldNumeric:
		return name + " numeric"
	case IndexFieldText:
		if f.TextWeight > 0 {
			return name + " text^" + strconv.FormatFloat(f.TextWeight, 'f', -1, 64)
		}
		return name + " text"
	case IndexFieldVector:
		algo := f.VectorAlgo
		if algo == "" {
			algo = VectorFlat
		}
		distance := f.VectorDistance
		if distance == "" {
			distance = DistanceIP
		}
		return fmt.Sprintf("%s vector %s/%d/%s", name, strings.ToLower(string(algo)), f.VectorDim, distance)
	default:
		return name + " ?"
	}
}
