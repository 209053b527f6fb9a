package mcpserver

// ContractURI identifies the deck format resource.
const ContractURI = "deckgraph://markup"

// DeckFormatContract describes the deck file format and note markup that
// LLM consumers should follow when creating decks.
const DeckFormatContract = `# Deck Format Contract

A deck is a UTF-8 file ending in ` + "`.deck`" + `: YAML frontmatter followed by a body
written in note markup.

## Frontmatter

` + "```" + `yaml
---
name: Human-readable name      # REQUIRED
kind: idea                     # REQUIRED, lowercase: [a-z][a-z0-9_-]*
tags: [optional, list]
refs:                          # OPTIONAL references to other decks
  - to: people/ada.deck        # vault path of the target deck
    kind: ref_to_parent        # ref | ref_to_parent | ref_to_child | ref_in_contrast | ref_critical
---
` + "```" + `

## Note markup

Every line is its own note. Blank lines are ignored.

- ` + "`*text*`" + ` strong
- ` + "`_text_`" + ` underline
- ` + "`^text^`" + ` highlight
- ` + "`\"text\"`" + ` quotation
- ` + "`|text|`" + ` sidenote shown in the margin
- ` + "`[[url]]`" + ` link, the url is also the label
- ` + "`[[url][label]]`" + ` link with a label
- ` + "`1. item`" + ` ordered list item; consecutive lines form one list
- ` + "`- item`" + ` unordered list item
- a fenced code block opened by three backticks and an optional language (default text)

Links whose url ends in ` + "`.deck`" + ` and has no scheme become ` + "`ref`" + ` references.
A link missing its closing brackets makes the whole note render as plain text.

## Example

` + "```" + `
---
name: Lovelace
kind: person
refs:
  - to: ideas/analytical-engine.deck
    kind: ref_to_child
---
Wrote the *first* published algorithm |for the Analytical Engine|.
See [[people/babbage.deck][Babbage]].
- translator
- mathematician
` + "```" + `
`
