// Package validate screens generated practice text. Security checks reject
// terminal-hijacking and injection payloads outright; difficulty checks
// measure character composition against the level spec and score overall
// challenge so progression stays smooth across levels.
package validate
