// Package packing selects and orders candidate rakes into a dispatch plan.
// Three strategies share the Optimizer contract: a deterministic greedy pass,
// a genetic search over rake orderings and simulated annealing seeded from
// the greedy solution. Every strategy reports a plan score on the same 0-100
// scale so results can be compared.
package packing
