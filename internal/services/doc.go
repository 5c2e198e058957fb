// Package services talks to the remote list-tracking service.
//
// The sync coordinator only sees the [Service] interface: pull a list, push
// one entry, fetch friends and the profile. [Client] implements it over the
// service's HTTP/JSON API.
//
// Authentication uses HTTP basic auth with the configured username and
// password, or a bearer token through an [oauth2] client when an access token
// is configured. Requests are paced with a [rate.Limiter].
//
// Errors are sorted for the caller: anything that means "try again later"
// (transport failures, 429, 5xx) wraps [shared.ErrRemoteUnavailable], 401/403
// wrap [shared.ErrNotAuthenticated], and other 4xx wrap [shared.ErrAPIRequest].
package services
