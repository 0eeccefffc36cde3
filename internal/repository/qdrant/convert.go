package qdrant

import (
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// Qdrant point ids must be UUIDs or integers; record ids are mapped with a
// name-based UUID so re-upserting a record id replaces the same point.
var pointNamespace = uuid.MustParse("6f1c2a57-93c4-4b0e-a3d5-2f9e0c7b8e41")

const (
	payloadRecordID   = "record_id"
	payloadSource     = "source"
	payloadText       = "text"
	payloadChunkIndex = "chunk_index"
	payloadSpanStart  = "span_start"
	payloadSpanEnd    = "span_end"
	payloadLineFrom   = "line_from"
	payloadLineTo     = "line_to"
	payloadExtra      = "extra"
)

func pointID(recordID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(recordID)).String()
}

func toPoint(rec *domain.IndexRecord) *qdrant.PointStruct {
	md := rec.Metadata
	payload := map[string]*qdrant.Value{
		payloadRecordID:   stringValue(rec.ID),
		payloadSource:     stringValue(md.Source),
		payloadText:       stringValue(md.Text),
		payloadChunkIndex: intValue(md.ChunkIndex),
		payloadSpanStart:  intValue(md.Span.Start),
		payloadSpanEnd:    intValue(md.Span.End),
		payloadLineFrom:   intValue(md.Span.LineFrom),
		payloadLineTo:     intValue(md.Span.LineTo),
	}
	if len(md.Extra) > 0 {
		fields := make(map[string]*qdrant.Value, len(md.Extra))
		for k, v := range md.Extra {
			fields[k] = stringValue(v)
		}
		payload[payloadExtra] = &qdrant.Value{Kind: &qdrant.Value_StructValue{
			StructValue: &qdrant.Struct{Fields: fields},
		}}
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(pointID(rec.ID)),
		Vectors: qdrant.NewVectors(rec.Vector...),
		Payload: payload,
	}
}

func fromScoredPoint(p *qdrant.ScoredPoint) domain.Match {
	pl := p.GetPayload()
	m := domain.Match{
		ID:    getString(pl, payloadRecordID),
		Score: float64(p.GetScore()),
		Metadata: domain.RecordMetadata{
			Source:     getString(pl, payloadSource),
			Text:       getString(pl, payloadText),
			ChunkIndex: getInt(pl, payloadChunkIndex),
			Span: domain.Span{
				Start:    getInt(pl, payloadSpanStart),
				End:      getInt(pl, payloadSpanEnd),
				LineFrom: getInt(pl, payloadLineFrom),
				LineTo:   getInt(pl, payloadLineTo),
			},
		},
	}
	if m.ID == "" {
		m.ID = p.GetId().GetUuid()
	}

	if extra := pl[payloadExtra].GetStructValue(); extra != nil && len(extra.GetFields()) > 0 {
		m.Metadata.Extra = make(map[string]string, len(extra.GetFields()))
		for k, v := range extra.GetFields() {
			m.Metadata.Extra[k] = v.GetStringValue()
		}
	}

	if vec := p.GetVectors().GetVector(); vec != nil {
		if dense := vec.GetDense(); dense != nil {
			m.Vector = dense.GetData()
		}
	}
	return m
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(n int) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(n)}}
}

func getString(pl map[string]*qdrant.Value, key string) string {
	return pl[key].GetStringValue()
}

func getInt(pl map[string]*qdrant.Value, key string) int {
	return int(pl[key].GetIntegerValue())
}
