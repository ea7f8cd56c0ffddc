package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Fields is the optional context attached to a record.
type Fields map[string]any

// Record is a single log entry. Its fields are copied when the record is
// created and are not modified afterwards.
type Record struct {
	Time    time.Time
	Level   Level
	Message string
	Fields  Fields
}

// NewRecord builds a record, merging fields left to right.
func NewRecord(level Level, msg string, fields ...Fields) Record {
	return Record{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
		Fields:  mergeFields(nil, fields...),
	}
}

// Marker returns the console prefix of the record's level.
func (r Record) Marker() string {
	return r.Level.Marker()
}

// Text renders the message and fields without marker or color:
//
//	msg
//	msg: key='value'
//	msg:
//	  - a='x'
//	  - b=2
func (r Record) Text() string {
	keys := sortedKeys(r.Fields)
	switch len(keys) {
	case 0:
		return r.Message
	case 1:
		return r.Message + ": " + formatField(keys[0], r.Fields[keys[0]])
	}
	var b strings.Builder
	b.WriteString(r.Message)
	b.WriteString(":")
	for _, k := range keys {
		b.WriteString("\n  - ")
		b.WriteString(formatField(k, r.Fields[k]))
	}
	return b.String()
}

func mergeFields(base Fields, extra ...Fields) Fields {
	n := len(base)
	for _, f := range extra {
		n += len(f)
	}
	if n == 0 {
		return nil
	}
	out := make(Fields, n)
	for k, v := range base {
		out[k] = v
	}
	for _, f := range extra {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

func sortedKeys(f Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatField(key string, value any) string {
	value = redact(key, value)
	if s, ok := value.(string); ok {
		return fmt.Sprintf("%s='%s'", key, s)
	}
	return fmt.Sprintf("%s=%v", key, value)
}

func redact(key string, value any) any {
	if isRedactedField(key) {
		return redactedValue
	}
	return value
}
