// Warden monitors compliance policies for document changes and check
// failures.
//
// On a schedule it compares the two latest versions of every monitored
// policy, records the detected changes, evaluates the active compliance
// checks for the policy type, raises a violation for every failing check and
// notifies the policy's subscribers.
//
// Usage:
//
//	# Start the scheduler with the metrics and health endpoints
//	warden run --config warden.yaml
//
//	# Import the policy catalog into the store
//	warden catalog import catalog.yaml
//
//	# Run one monitoring cycle now, without writing anything
//	warden check --dry-run
//
//	# Show recent results and open violations of a policy
//	warden status --policy pol-access --output json
//
//	# Delete history older than the retention window
//	warden prune
package main

import "os"

func main() {
	os.Exit(Execute())
}
