// Package domain contains the core model types, the event envelope, and the
// contracts between the session controller, the worker adapter, the
// broadcaster, and persistence. It has no dependencies on other internal
// packages.
package domain
