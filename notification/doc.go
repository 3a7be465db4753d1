/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package notification provides the service that sends notifications to recipients
// only when they are admitted by the rate limiter.
package notification
