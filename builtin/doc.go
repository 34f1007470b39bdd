// Package builtin provides the standard macro library for the mex engine:
// participant names, document structure helpers, string utilities, time and
// date, dice and random selection, chat variables, and an arithmetic
// expression calculator.
//
// Install the library into a registry with [Register]:
//
//	reg := macro.NewRegistry()
//	if err := builtin.Register(reg); err != nil {
//		...
//	}
//
// Time source, random source, and the variable store are injectable through
// options for deterministic tests.
package builtin
