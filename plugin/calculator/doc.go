// Package calculator is a stateless arithmetic plugin. Domain errors such
// as division by zero are reported as validation failures.
package calculator
