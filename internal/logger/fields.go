package logger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/licita-radar/internal/procurement"
)

// Structured field keys shared across packages.
const (
	FieldProvider      = "ai_provider"
	FieldModel         = "ai_model"
	FieldRecordID      = "record_id"
	FieldControlNumber = "control_number"
	FieldOrganization  = "organization"
	FieldState         = "state"
)

// StringField is a key/value pair rendered as a zap string field.
type StringField struct {
	Key   string
	Value string
}

// StringFields trims the pairs and drops the ones with a blank key or value.
func StringFields(fields ...StringField) []zap.Field {
	var result []zap.Field
	for _, f := range fields {
		key, value := strings.TrimSpace(f.Key), strings.TrimSpace(f.Value)
		if key != "" && value != "" {
			result = append(result, zap.String(key, value))
		}
	}
	return result
}

// WithFields attaches fields to l. A nil logger becomes a no-op logger.
func WithFields(l *zap.Logger, fields ...zap.Field) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// WithAI tags l with the external classifier provider and model.
func WithAI(l *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(l, StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)...)
}

// RecordFields identifies a procurement record in log entries.
func RecordFields(record *procurement.Record) []zap.Field {
	if record == nil {
		return nil
	}
	return StringFields(
		StringField{Key: FieldRecordID, Value: record.ID},
		StringField{Key: FieldControlNumber, Value: record.ControlNumber},
		StringField{Key: FieldOrganization, Value: record.OrganizationName},
		StringField{Key: FieldState, Value: record.StateCode},
	)
}
