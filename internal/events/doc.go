// Package events streams workflow patches to socket.io clients.
//
// A client emits "subscribe" with {"projectId", "workflowId"} and receives
// "subscribed" carrying the current workflow and its snapshot id, followed
// by one "patch" event per batch of changes. "unsubscribe" with
// {"subscriptionId"} ends a subscription; disconnecting ends all of them.
// Failures are reported with "subscribe_error".
package events

// Event names exchanged with clients.
const (
	EventSubscribe      = "subscribe"
	EventUnsubscribe    = "unsubscribe"
	EventSubscribed     = "subscribed"
	EventUnsubscribed   = "unsubscribed"
	EventPatch          = "patch"
	EventSubscribeError = "subscribe_error"
)
