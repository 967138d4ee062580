// Package html turns HTML pages into plain text for chunking.
//
// Markup is walked with the x/net/html tokenizer. Block elements become line
// breaks, table cells in one row are joined with " | ", and script, style,
// noscript, head and svg content is dropped. The <title> element supplies the
// document title.
package html
