package mcpserver

// DraftFormatContract describes the Markdown draft format that MCP clients
// should follow when they read or hand-edit drafts.
const DraftFormatContract = `# Draft Format Contract

Every article is a UTF-8 Markdown file with a YAML frontmatter block.

## Location and naming

- New drafts live in ` + "`" + `drafts/` + "`" + ` under the content root.
- Files are named ` + "`" + `YYYY-MM-DD-<slug>.md` + "`" + `, where the slug is the
  transliterated, lowercase, hyphenated title.
- Publishing copies a draft into the content root (the ready folder). The
  draft copy is kept.

## Structure

` + "```" + `markdown
---
title: "Healthy Eating Habits"      # REQUIRED
description: "Short summary"        # one line, may be empty
publish: false                      # boolean; true marks it for publication
created_date: "2025-05-01"          # ISO date
tags:                               # YAML list of strings
  - health
featured_image: ""                  # image URL or empty string
slug: healthy-eating-habits         # derived from the title when omitted
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. The ` + "`" + `---` + "`" + ` fences must be the first thing in the file.
2. ` + "`" + `title` + "`" + ` is required; ` + "`" + `publish` + "`" + ` must be a boolean and ` + "`" + `tags` + "`" + ` a list.
3. Marking for publication only flips ` + "`" + `publish` + "`" + `; every other byte stays as it is.
4. Extra frontmatter keys from prompt templates are kept in file order.
5. Use ` + "`" + `mark_for_publish` + "`" + ` and ` + "`" + `publish_draft` + "`" + ` instead of editing files by hand.
`
