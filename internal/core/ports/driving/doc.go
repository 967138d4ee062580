// Package driving declares the services the CLI, TUI, HTTP and MCP
// front ends call. internal/core/services implements them.
package driving
