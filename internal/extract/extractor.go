// Package extract turns raw catalog records into flat documents ready for
// chunking. Records are heterogeneous key/value objects, possibly carrying
// embedded markup and a nested channels list.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CatalogLoader = (*Extractor)(nil)

// Extractor reads catalog JSON files of the form {"allservices": [...]}.
type Extractor struct {
	// ignored field names are excluded from generated content
	// (administrative/internal fields).
	ignored map[string]struct{}
}

// DefaultIgnoredFields are administrative fields never useful as answer
// context.
var DefaultIgnoredFields = []string{
	"status",
	"created_at",
	"updated_at",
	"sort_order",
}

// NewExtractor creates an extractor excluding the given field names.
func NewExtractor(ignoredFields []string) *Extractor {
	ignored := make(map[string]struct{}, len(ignoredFields))
	for _, name := range ignoredFields {
		ignored[name] = struct{}{}
	}
	return &Extractor{ignored: ignored}
}

// Load reads and flattens all records of a source file.
// A missing file is a recoverable condition and yields (nil, nil).
func (e *Extractor) Load(ctx context.Context, file domain.SourceFile) ([]domain.Document, error) {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", file.Path, err)
	}

	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrParse, file.Path, err)
	}

	docs := make([]domain.Document, 0, len(records))
	for _, record := range records {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		docs = append(docs, e.extract(record, file.Category, file.Language))
	}
	return docs, nil
}

// extract builds one document from a record. Non-ignored scalar fields are
// joined in declaration order, each prefixed "fieldName: " for
// traceability, then channel title/description pairs are appended and
// markup tags stripped from the final string.
func (e *Extractor) extract(record domain.SourceRecord, category, language string) domain.Document {
	var parts []string
	for _, field := range record.Fields {
		if _, skip := e.ignored[field.Name]; skip {
			continue
		}
		if field.Value == "" {
			continue
		}
		parts = append(parts, field.Name+": "+field.Value)
	}
	for _, channel := range record.Channels {
		parts = append(parts, strings.TrimSpace(channel.Title+" "+channel.Description))
	}

	return domain.Document{
		Content: StripTags(strings.Join(parts, " ")),
		Metadata: domain.Metadata{
			UniqueID: record.UniqueID,
			Name:     record.Name,
			Category: category,
			Language: language,
		},
	}
}

// StripTags removes markup from text: anything between '<' and '>'
// inclusive is dropped. Best-effort, not a full parser; an unterminated
// '<' drops the remainder of the string.
func StripTags(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// decodeRecords walks the JSON with a token decoder so field declaration
// order is preserved (map decoding would scramble it).
func decodeRecords(data []byte) ([]domain.SourceRecord, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	// Expect {"allservices": [ ... ]}
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var records []domain.SourceRecord
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		if key != "allservices" {
			// Skip unrelated top-level values
			var discard json.RawMessage
			if err := dec.Decode(&discard); err != nil {
				return nil, err
			}
			continue
		}

		if err := expectDelim(dec, '['); err != nil {
			return nil, err
		}
		for dec.More() {
			record, err := decodeRecord(dec)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return nil, err
		}
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return records, nil
}

// decodeRecord reads one record object, keeping scalar fields in order.
func decodeRecord(dec *json.Decoder) (domain.SourceRecord, error) {
	var record domain.SourceRecord

	if err := expectDelim(dec, '{'); err != nil {
		return record, err
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return record, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return record, fmt.Errorf("expected field name, got %v", keyTok)
		}

		if key == "channels" {
			var channels []domain.Channel
			if err := dec.Decode(&channels); err != nil {
				return record, fmt.Errorf("field channels: %w", err)
			}
			record.Channels = channels
			continue
		}

		valTok, err := dec.Token()
		if err != nil {
			return record, err
		}

		switch v := valTok.(type) {
		case string:
			record.Fields = append(record.Fields, domain.Field{Name: key, Value: v})
		case json.Number:
			record.Fields = append(record.Fields, domain.Field{Name: key, Value: v.String()})
		case bool:
			record.Fields = append(record.Fields, domain.Field{Name: key, Value: strconv.FormatBool(v)})
		case nil:
			// null fields contribute nothing
		case json.Delim:
			// Nested structure other than channels: skip it wholesale
			if err := skipNested(dec, v); err != nil {
				return record, err
			}
		}

		switch key {
		case "unique_id":
			record.UniqueID = tokenString(valTok)
		case "name":
			record.Name = tokenString(valTok)
		}
	}

	if err := expectDelim(dec, '}'); err != nil {
		return record, err
	}
	return record, nil
}

// skipNested consumes the remainder of an already-opened array or object.
func skipNested(dec *json.Decoder, open json.Delim) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func tokenString(tok json.Token) string {
	switch v := tok.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}
