// Package poll implements the gateway's two independent periodic tasks:
// Driver, which refreshes head state, detects height and witness changes,
// and fans out derived artifacts to subscribers; and HealthProbe, which
// pings the current upstream on its own schedule and forces a failover on
// failure.
package poll
