package outbox

import "example.com/liftlog/internal/events"

const sessionCompletedSchema = `{
  "type": "object",
  "title": "SessionCompleted",
  "properties": {
    "session_id": {"type": "string"},
    "account_id": {"type": "string"},
    "name": {"type": "string"},
    "date": {"type": "string", "format": "date-time"},
    "completed_at": {"type": "string", "format": "date-time"},
    "template_id": {"type": "string"},
    "set_count": {"type": "integer"},
    "volume": {"type": "number"},
    "exercises": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "exercise_id": {"type": "string"},
          "sets": {"type": "integer"},
          "top_weight": {"type": "number"}
        },
        "required": ["exercise_id", "sets", "top_weight"]
      }
    },
    "run_mode": {"type": "string", "enum": ["manual", "gps"]},
    "distance_m": {"type": "number"},
    "duration_s": {"type": "integer"}
  },
  "required": ["session_id", "name", "date", "completed_at", "set_count", "volume", "exercises"],
  "additionalProperties": false
}`

const sessionDeletedSchema = `{
  "type": "object",
  "title": "SessionDeleted",
  "properties": {
    "session_id": {"type": "string"},
    "account_id": {"type": "string"},
    "deleted_at": {"type": "string", "format": "date-time"}
  },
  "required": ["session_id", "deleted_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps an event type to its JSON schema.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeSessionCompleted: {Schema: sessionCompletedSchema},
	events.TypeSessionDeleted:   {Schema: sessionDeletedSchema},
}
