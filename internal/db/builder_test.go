package db

import (
	"errors"
	"strings"
	"testing"
)

func TestIndexBuilder_ChunkSchema(t *testing.T) {
	idx := NewIndex("docs").
		Prefix("docs:").
		Tag("source").
		Numeric("chunk_index").
		Text("text").
		VectorHNSW("vector", 1536, DistanceCosine, 0, 0).
		MustBuild()

	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 4 {
		t.Fatalf("fields count = %d, want 4", len(idx.Fields))
	}
	vec := idx.Fields[3]
	if vec.Type != IndexFieldVector || vec.VectorAlgo != VectorHNSW || vec.VectorDim != 1536 {
		t.Errorf("vector field = %+v", vec)
	}
	if vec.VectorDistance != DistanceCosine {
		t.Errorf("distance = %q, want COSINE", vec.VectorDistance)
	}
}

func TestIndexBuilder_VectorFlat(t *testing.T) {
	idx := NewIndex("flat").VectorFlat("vector", 8, DistanceL2).MustBuild()
	if idx.Fields[0].VectorAlgo != VectorFlat || idx.Fields[0].VectorDim != 8 {
		t.Errorf("field = %+v", idx.Fields[0])
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
		errMsg  string
	}{
		{"empty name", NewIndex("").Tag("a"), "index name is required"},
		{"invalid name", NewIndex("bad name").Tag("a"), "invalid characters"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"zero dim", NewIndex("idx").VectorHNSW("vector", 0, DistanceCosine, 0, 0), "positive DIM"},
		{"duplicate", NewIndex("idx").Tag("source").Text("source"), "duplicate field name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %q, want containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestIndexBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewIndex("").MustBuild()
}

func TestIndexDefinition_String(t *testing.T) {
	idx := NewIndex("docs").Prefix("docs:").Tag("source").VectorHNSW("vector", 4, DistanceCosine, 0, 0).MustBuild()
	want := "FT.CREATE docs ON HASH PREFIX docs: SCHEMA source TAG vector VECTOR HNSW"
	if got := idx.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"docs", "rag_index", "ns:docs-1"}
	for _, s := range valid {
		if !IsValidIdentifier(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	invalid := []string{"", "with space", "dot.name", "slash/name"}
	for _, s := range invalid {
		if IsValidIdentifier(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	err := &Error{Op: OpSearch, Err: ErrIndexNotFound}
	if !errors.Is(err, ErrIndexNotFound) {
		t.Fatal("expected errors.Is to see the wrapped sentinel")
	}
	if err.Error() != "FT.SEARCH: db: index not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestVectorCodec(t *testing.T) {
	in := []float32{1, -0.5, 3.25}
	blob := EncodeVector(in)
	if len(blob) != 12 {
		t.Fatalf("expected 12 bytes, got %d", len(blob))
	}
	out, err := DecodeVector(blob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := DecodeVector("abc"); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}
