// Package content wires the pipeline together: the difficulty model picks
// a spec, the generator produces text, the security and difficulty gates
// screen it, and the cache serves repeats. The Manager is the process-wide
// entry point; construct one explicitly and inject it where needed.
package content
