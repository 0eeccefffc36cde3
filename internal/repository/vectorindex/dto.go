package vectorindex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/ragpipe/internal/db"
	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// Hash field names of a stored chunk record.
const (
	fieldRecordID   = "record_id"
	fieldSource     = "source"
	fieldText       = "text"
	fieldChunkIndex = "chunk_index"
	fieldSpanStart  = "span_start"
	fieldSpanEnd    = "span_end"
	fieldLineFrom   = "line_from"
	fieldLineTo     = "line_to"
	fieldExtra      = "extra"
	fieldVector     = "vector"
)

var returnFields = []string{
	fieldRecordID, fieldSource, fieldText, fieldChunkIndex,
	fieldSpanStart, fieldSpanEnd, fieldLineFrom, fieldLineTo, fieldExtra,
}

func recordToHash(rec *domain.IndexRecord) (map[string]string, error) {
	md := rec.Metadata
	fields := map[string]string{
		fieldRecordID:   rec.ID,
		fieldSource:     md.Source,
		fieldText:       md.Text,
		fieldChunkIndex: strconv.Itoa(md.ChunkIndex),
		fieldSpanStart:  strconv.Itoa(md.Span.Start),
		fieldSpanEnd:    strconv.Itoa(md.Span.End),
		fieldLineFrom:   strconv.Itoa(md.Span.LineFrom),
		fieldLineTo:     strconv.Itoa(md.Span.LineTo),
		fieldVector:     db.EncodeVector(rec.Vector),
	}
	if len(md.Extra) > 0 {
		b, err := json.Marshal(md.Extra)
		if err != nil {
			return nil, fmt.Errorf("marshal extra: %w", err)
		}
		fields[fieldExtra] = string(b)
	}
	return fields, nil
}

func matchFromHash(e db.SearchEntry, keyPrefix string) (domain.Match, error) {
	f := e.Fields
	id := f[fieldRecordID]
	if id == "" {
		id = strings.TrimPrefix(e.Key, keyPrefix)
	}

	m := domain.Match{
		ID:    id,
		Score: e.Score,
		Metadata: domain.RecordMetadata{
			Source:     f[fieldSource],
			Text:       f[fieldText],
			ChunkIndex: atoi(f[fieldChunkIndex]),
			Span: domain.Span{
				Start:    atoi(f[fieldSpanStart]),
				End:      atoi(f[fieldSpanEnd]),
				LineFrom: atoi(f[fieldLineFrom]),
				LineTo:   atoi(f[fieldLineTo]),
			},
		},
	}

	if raw := f[fieldExtra]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.Metadata.Extra); err != nil {
			return domain.Match{}, fmt.Errorf("unmarshal extra: %w", err)
		}
	}

	if blob, ok := f[fieldVector]; ok {
		v, err := db.DecodeVector(blob)
		if err != nil {
			return domain.Match{}, err
		}
		m.Vector = v
	}
	return m, nil
}

// atoi tolerates missing numeric fields written by older records.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
