// Package file keeps docqa's user-editable state on disk: config.toml for
// settings and a prompts directory of plain-text instructions.
package file
