// Package macro implements a template-expansion engine for documents
// containing double-brace invocations such as `{{name}}`, `{{roll::1d20}}`,
// or `{{reverse::{{user}}}}`.
//
// The pipeline is: pre-process → lex → parse (with error recovery) → walk →
// dispatch each invocation through a [Registry] → post-process. Text outside
// and between invocations is preserved byte-exactly; unknown or malformed
// invocations survive verbatim (their nested invocations still expand), so
// a document is never lost to a bad macro.
//
// The lexer and parser never fail: a missing close delimiter is synthesized
// and marked, and the walker flattens the affected span back to plaintext.
// All problems surface as structured diagnostics through a [Reporter].
//
// Typical use:
//
//	reg := macro.NewRegistry()
//	_ = reg.Register("user", macro.Spec{
//		Handler: func(ctx macro.Ctx) (any, error) {
//			return ctx.Env.Names.User, nil
//		},
//	})
//
//	eng := macro.NewEngine(reg)
//	env := macro.NewBuilder().Build(macro.RawEnv{Name1: "User"})
//	out := eng.Evaluate("Hello {{user}}!", env)
//
// Concrete macro libraries live outside this package; see package builtin.
package macro
