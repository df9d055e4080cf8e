// Package notifications delivers optional push notifications for workflow
// milestones via ntfy. When no topic is configured every call is a noop, so
// callers never need to guard their sends.
package notifications
