// Package launch provides the shared types for the TreeDBSCAN run orchestrator.
//
// # Reading Guide
//
// A single run flows through these packages, leaves first:
//   - topology/: converts (backends, fan-in) into an overlay-tree spec and
//     produces the topology file consumed by the front-end
//   - hosts/: discovers the allocated host list and splits it into
//     front-end, tree and application roles
//   - proc/: launches the front-end (and, in attach mode, the backend group),
//     relays their output live and joins on their exit
//   - stats/: reduces the per-backend statistics artifact into one summary row
//   - experiment/: wires the above into one run
//   - sweep/: repeats runs over the (backends, fan-in, iteration) grid
//
// # Errors
//
// Failures are classified with the sentinel errors in errors.go and are
// always wrapped, so callers test with errors.Is.
package launch
