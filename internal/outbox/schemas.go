package outbox

const activityRecordedSchema = `{
  "type": "object",
  "title": "ActivityRecorded",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "service": {"type": "string"},
    "duration_seconds": {"type": "integer"},
    "data_used_mb": {"type": "number"},
    "resolution": {"type": "string"},
    "co2e_grams": {"type": "number"},
    "recorded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "service", "duration_seconds", "data_used_mb", "co2e_grams", "recorded_at"],
  "additionalProperties": false
}`

const footprintRefreshedSchema = `{
  "type": "object",
  "title": "FootprintRefreshed",
  "properties": {
    "user_id": {"type": "string"},
    "total_co2e_grams": {"type": "number"},
    "activity_count": {"type": "integer"},
    "refreshed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "total_co2e_grams", "activity_count", "refreshed_at"],
  "additionalProperties": false
}`
