package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// pgtype とドメイン型の相互変換

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func fromPgUUID(id pgtype.UUID) uuid.UUID {
	return id.Bytes
}

// optionalText は NULL を nil として返す（translated_title など）
func optionalText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func fromTimestamptz(t pgtype.Timestamptz) time.Time {
	return t.Time
}

func fromInt4(i pgtype.Int4) int {
	if !i.Valid {
		return 0
	}
	return int(i.Int32)
}

// toVector は Embedding を pgvector 型に変換する
func toVector(v []float32) pgvector.Vector {
	return pgvector.NewVector(v)
}
