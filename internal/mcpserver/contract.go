package mcpserver

// ExportFormatContract documents the JSON exchange format accepted by
// import_notes and produced by export_notes.
const ExportFormatContract = `# notesjson Export Format

An export is a single JSON array. Each element is one note:

` + "```" + `json
[
  {
    "title": "Meeting Notes",
    "content": "Discussed project timeline.",
    "timestamp": "2025-09-13T10:15:30Z"
  },
  {
    "title": "Empty note",
    "timestamp": "2025-09-12T08:00:00.250Z"
  }
]
` + "```" + `

## Fields

1. **title** (string, required). Must not be blank after trimming whitespace.
2. **content** (string, optional). Omitted or null means no content.
3. **timestamp** (string, required). RFC 3339 / ISO-8601 with a zone
   designator; fractional seconds are optional. Exports always use UTC.

Notes carry no id: every imported note gets a fresh identity.
Unknown fields are ignored. The array is ordered newest first on export,
but any order is accepted on import.

## Import modes

- **merge** (default): existing notes stay. An incoming note is skipped when
  a stored note has the same title and the same timestamp truncated to whole
  seconds. Duplicates inside one file are all inserted.
- **replace**: every stored note is deleted first, then all incoming notes
  are inserted. Not transactional: a failing note stops the import and the
  notes before it remain.

An empty array is rejected with "no notes".
`
