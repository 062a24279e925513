// Package corpus holds the static word, term, symbol, and digit banks the
// generator composes from. The banks are deliberate about character classes:
// prose and technical words are alphabetic only, so symbol and digit
// densities are controlled exclusively by their own token classes.
package corpus
