// Package agent supervises the single MCP server subprocess and speaks its
// line protocol.
//
// # Lifecycle
//
// Launch spawns the interpreter on the server's entrypoint with all three
// stdio streams piped, confirms the process survived a short grace interval,
// and returns a Process. Three goroutines fan out from one spawn:
//
//   - the exit watcher, which reaps the process exactly once and publishes
//     its status through a done channel
//   - the stderr drain, which consumes diagnostics line by line so the child
//     is never blocked writing them
//   - the session actor (once NewSession is called), which owns stdin/stdout
//
// # Protocol
//
// One query is one newline-terminated command line in, one line out. The
// Session serializes all callers through a request channel: a query's
// write+read cycle completes (or times out) before the next query's bytes
// are written, so no interleaving on the wire is possible. A reply that
// arrives after its query timed out is discarded, never delivered to a later
// caller.
//
// There is no restart path. When the subprocess dies, every subsequent query
// fails with ErrProcessTerminated until the gateway itself is restarted.
package agent
