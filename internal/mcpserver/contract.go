package mcpserver

// FrontmatterContract describes the frontmatter schema a document needs to
// become a node of the knowledge graph.
const FrontmatterContract = `# Vault Frontmatter Contract

Only documents with a valid frontmatter block become graph nodes. Invalid
documents stay in the vault but are reported by build_graph.

## Structure

` + "```" + `markdown
---
created: 2025-01-15          # REQUIRED - date string
updated: 2025-01-20          # REQUIRED - date string
tags: [infra, kubernetes]    # REQUIRED - non-empty list; inline or block form
layer: 3                     # REQUIRED - 1..5, see below
title: Cluster upgrade plan  # optional - falls back to the first "# " heading
confidence: 0.8              # optional - 0..1
accessed_count: 4            # optional - >= 0
source: https://example.com  # optional
expires: 2026-01-01          # optional
domain: work                 # optional - weak cross-links to the same domain
person:                      # optional - only for documents about people
  relationship_type: friend  # friend, family, colleague, acquaintance, partner, sibling are symmetric when both sides use one
  intimacy_level: 4          # 1..5
---
` + "```" + `

## Layers

| Layer | Name     | Use for                                    |
|-------|----------|--------------------------------------------|
| 1     | Core     | identity, values, people closest to you    |
| 2     | Derived  | beliefs and conclusions drawn from layer 1 |
| 3     | External | references, articles, outside knowledge    |
| 4     | Action   | projects, tasks, plans                     |
| 5     | Context  | logs, meetings, transient context          |

Activation leaks faster from low layers: a hop out of a Core note keeps
half of its score, a hop out of a Context note keeps 95%.

## Links and hierarchy

1. Link with relative markdown links: ` + "`" + `[text](../folder/note.md)` + "`" + `. The ` + "`" + `.md` + "`" + `
   suffix may be omitted. Links starting with ` + "`" + `/` + "`" + ` are relative to the vault root.
2. Web links and ` + "`" + `#anchors` + "`" + ` are not graph edges. Links inside code are ignored.
3. An ` + "`" + `index.md` + "`" + ` in a folder becomes the parent of every note in that folder
   and the child of the parent folder's index.
4. Notes in the same folder are siblings.

## Rules

1. The ` + "`" + `---` + "`" + ` fences must be the first line of the file.
2. Tags are matched case-insensitively; a leading ` + "`" + `#` + "`" + ` is ignored.
3. File paths end with ` + "`" + `.md` + "`" + ` and use forward slashes.
4. Folders starting with a dot are not indexed.
`
