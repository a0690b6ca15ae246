// Package generation defines the boundary between the task core and external
// AI/LLM services. Handlers depend on the Generator interface only; concrete
// adapters live under internal/platform.
package generation
