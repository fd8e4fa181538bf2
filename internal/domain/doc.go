// Package domain holds the core data model shared by every agent in the
// orchestration substrate: ProjectState, Task, Improvement, AgentMessage,
// ReviewResult, Metric, Alert, and HealthScore.
package domain
