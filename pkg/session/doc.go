// Package session keeps an HTTP API client authorized across the lifetime
// of a short-lived bearer token.
//
// The pieces compose into an outbound pipeline:
//
//	sess := session.New(store)
//	coord := session.NewCoordinator(sdk.Refresh, sess)
//	sched := session.NewScheduler(sess, coord)
//	defer sched.Stop()
//
//	client := &http.Client{Transport: httpx.Chain(base,
//		session.InjectAuth(store),
//		coord.Transport(),
//	)}
//
//	_ = sess.Bootstrap(ctx)
//
// InjectAuth stamps the stored token on requests that carry no
// Authorization header. When the server answers 401, the coordinator runs
// exactly one refresh exchange no matter how many requests failed
// concurrently, queues the rest in arrival order, and replays every queued
// request once with the new token. The scheduler renews the token shortly
// before its exp claim through the same coordinator, so proactive and
// reactive renewal never race each other.
//
// A 401 from the refresh exchange itself is terminal: the session is
// cleared and the navigator is sent to the login view.
package session
