// Package planning implements the first three stages of rake formation: stock
// allocation, route selection and rake composition. Every stage works on a
// RunContext that owns a private copy of the inventory and loading point
// state for a single planning run.
package planning
