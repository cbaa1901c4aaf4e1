// Package events is a small typed publish/subscribe bus. Event kinds form a
// closed set chosen by the caller, so listeners are registered against a
// typed Kind rather than a free-form string.
package events
