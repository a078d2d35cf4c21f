// Package decision runs the rake formation pipeline end to end and turns its
// output into a decision: a dispatch plan with a confidence figure, the risks
// it carries, actionable recommendations, ranked alternative plans and a
// readable explanation.
//
// Every risk and recommendation is tied to a numeric threshold of Config so a
// planner can trace why it was raised.
package decision
