// Package persistence stores the whole entity state as one schema-versioned
// document and writes it back in mutation order.
package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"example.com/liftlog/internal/domain"
	"example.com/liftlog/internal/lastperf"
)

// CurrentSchemaVersion is the newest document layout this build understands.
const CurrentSchemaVersion = 1

// Document is the serialised form of everything the app keeps on disk.
type Document struct {
	SchemaVersion   int                     `json:"schema_version"`
	SavedAt         time.Time               `json:"saved_at"`
	Account         *domain.Account         `json:"account"`
	Exercises       []domain.Exercise       `json:"exercises"`
	Folders         []domain.Folder         `json:"folders"`
	Templates       []domain.Template       `json:"templates"`
	Sessions        []domain.WorkoutSession `json:"sessions"`
	Draft           *domain.WorkoutSession  `json:"draft"`
	LastPerformance []lastperf.Entry        `json:"last_performance"`
	Outbox          []domain.OutboxEvent    `json:"outbox"`
}

// Migration upgrades a raw document from version N to N+1 in place.
type Migration func(raw map[string]json.RawMessage) error

// Codec converts between Documents and bytes, applying forward migrations to
// documents written by older builds.
type Codec struct {
	Version    int
	Migrations map[int]Migration
}

// DefaultCodec returns the codec for CurrentSchemaVersion.
func DefaultCodec() Codec {
	return Codec{Version: CurrentSchemaVersion, Migrations: map[int]Migration{}}
}

// Encode serialises doc, stamping the codec's schema version.
func (c Codec) Encode(doc Document) ([]byte, error) {
	doc.SchemaVersion = c.Version
	return json.Marshal(doc)
}

// Decode parses data into a Document. Unreadable input, an unsupported
// version or a missing migration step is reported as domain.ErrCorruption.
func (c Codec) Decode(data []byte) (Document, error) {
	var header struct {
		SchemaVersion *int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return Document{}, fmt.Errorf("%w: %v", domain.ErrCorruption, err)
	}
	if header.SchemaVersion == nil || *header.SchemaVersion < 1 {
		return Document{}, fmt.Errorf("%w: missing schema_version", domain.ErrCorruption)
	}
	version := *header.SchemaVersion
	if version > c.Version {
		return Document{}, fmt.Errorf("%w: schema version %d is newer than supported %d", domain.ErrCorruption, version, c.Version)
	}

	if version < c.Version {
		migrated, err := c.migrate(data, version)
		if err != nil {
			return Document{}, err
		}
		data = migrated
	}

	var doc Document
	if err := decodeStrict(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", domain.ErrCorruption, err)
	}
	normalize(&doc)
	return doc, nil
}

func (c Codec) migrate(data []byte, from int) ([]byte, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruption, err)
	}
	for v := from; v < c.Version; v++ {
		step, ok := c.Migrations[v]
		if !ok {
			return nil, fmt.Errorf("%w: no migration from schema version %d", domain.ErrCorruption, v)
		}
		if err := step(raw); err != nil {
			return nil, fmt.Errorf("%w: migrate schema version %d: %v", domain.ErrCorruption, v, err)
		}
	}
	version, err := json.Marshal(c.Version)
	if err != nil {
		return nil, err
	}
	raw["schema_version"] = version
	return json.Marshal(raw)
}

func decodeStrict(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

// normalize applies defaults that older writers may have left unset.
func normalize(doc *Document) {
	fix := func(session *domain.WorkoutSession) {
		for ei := range session.Entries {
			for si := range session.Entries[ei].Sets {
				set := &session.Entries[ei].Sets[si]
				set.Type = set.Type.OrDefault()
			}
		}
	}
	for i := range doc.Sessions {
		fix(&doc.Sessions[i])
	}
	if doc.Draft != nil {
		fix(doc.Draft)
	}
}
