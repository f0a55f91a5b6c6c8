package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// LLM consumers should follow when creating or updating notes.
const NoteFormatContract = `# Jera Note Format Contract

Every Markdown note stored in Jera MUST follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # REQUIRED – used in listings and successors
status: open                        # OPTIONAL – workflow status (open, complete, wont-do, ...)
scheduled: 2025-01-20T09:00:00      # OPTIONAL – next occurrence anchor
recurrenceRule: FREQ=WEEKLY;BYDAY=MO  # OPTIONAL – RFC 5545 recurrence rule
tags:                               # OPTIONAL – YAML list; used for filtering
  - tag-one
  - tag-two
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "```" + `---` + "```" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **` + "`" + `title` + "`" + ` field is required.** It is the primary display name everywhere.
3. **Tags** are lowercase, kebab-case (e.g. ` + "`" + `project-x` + "`" + `, ` + "`" + `meeting-notes` + "`" + `).
4. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
5. **Encoding** is UTF-8 with a trailing newline.

## Recurrence

- ` + "`" + `recurrenceRule` + "`" + ` holds an RFC 5545 RRULE body, with or without the
  ` + "`" + `RRULE:` + "`" + ` prefix (e.g. ` + "`" + `FREQ=DAILY` + "`" + `, ` + "`" + `FREQ=MONTHLY;BYMONTHDAY=1` + "`" + `).
- ` + "`" + `scheduled` + "`" + ` is written as ` + "`" + `2006-01-02T15:04:05` + "`" + ` (local time, no zone).
  Bare dates (` + "`" + `2006-01-02` + "`" + `) are accepted on read.
- When a recurring note reaches a terminal status (complete, wont-do), the
  engine creates the next occurrence as a new file and removes
  ` + "`" + `recurrenceRule` + "`" + ` from the finished one. Only one note per series
  carries the rule at a time.
- A filename ending in a date, like ` + "`" + `standup 2025-01-20.md` + "`" + `, names the
  occurrence; successors replace the trailing date with the next one.
- The legacy key ` + "`" + `recurrence` + "`" + ` is still understood on read but MUST NOT
  be written; use ` + "`" + `recurrenceRule` + "`" + `.

## Example

` + "```" + `markdown
---
title: Weekly standup 2025-01-20
status: open
scheduled: 2025-01-20T09:00:00
recurrenceRule: FREQ=WEEKLY;BYDAY=MO
tags:
  - meeting-notes
---

# Weekly standup 2025-01-20

Attendees: Alice, Bob.

## Action items

- Alice to review the design doc
- Bob to update the roadmap
` + "```" + `
`
