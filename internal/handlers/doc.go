// Package handlers contains the built-in task handlers: AI text generation
// backed by a generation.Generator, and HTTP file downloads. Each handler
// implements task.Handler plus task.Validator so malformed input is rejected
// at submission time.
package handlers
