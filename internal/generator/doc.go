// Package generator composes practice text deterministically from a
// difficulty spec and a seed. Character-class quotas (symbols, digits,
// technical terms) are materialized as tokens up front and interleaved
// with prose so that the output always hits the exact target length with
// every quota fully placed.
package generator
