package macro

import (
	"log/slog"

	"github.com/chatframe/mex/log"
)

// Reporter is the structured diagnostics surface of the engine. Four
// channels carry, respectively: lexing/parsing problems, user-authored
// mistakes (arity and type violations — unknown macros are not reported),
// definition or engine bugs, and registry mutation failures.
//
// Errors are data here, not control flow: nothing reported through a
// Reporter ever aborts an evaluation.
type Reporter struct {
	log log.Logger
}

// NewReporter creates a Reporter writing to logger.
func NewReporter(logger log.Logger) *Reporter {
	return &Reporter{log: logger}
}

// DefaultReporter returns a Reporter backed by the process default logger.
func DefaultReporter() *Reporter {
	return &Reporter{log: log.Default()}
}

// SyntaxWarning reports lexing or parsing issues found in input.
func (r *Reporter) SyntaxWarning(phase string, issues []Issue, input string) {
	if len(issues) == 0 {
		return
	}

	attrs := make([]slog.Attr, 0, len(issues))

	for _, issue := range issues {
		attrs = append(attrs, slog.Group("",
			slog.String("message", issue.Message),
			slog.Int("line", issue.Line),
			slog.Int("column", issue.Column),
			slog.Int("length", issue.Length),
		))
	}

	r.log.Warn("macro syntax issues",
		slog.String("phase", phase),
		slog.Int("count", len(issues)),
		slog.Any("issues", attrs),
		slog.String("input", input),
	)
}

// RuntimeWarning reports a user-authored problem in one invocation.
func (r *Reporter) RuntimeWarning(msg string, call *Call, attrs ...slog.Attr) {
	r.log.Warn(msg, append(callAttrs(call), attrs...)...)
}

// InternalError reports a definition or engine bug.
func (r *Reporter) InternalError(msg string, err error, call *Call, attrs ...slog.Attr) {
	all := append(callAttrs(call), slog.Any("error", err))
	r.log.Error(msg, append(all, attrs...)...)
}

// RegistrationWarning reports a non-fatal problem during registry mutation.
func (r *Reporter) RegistrationWarning(msg, name string) {
	r.log.Warn(msg, slog.String("macro", name))
}

// RegistrationError reports a rejected registry mutation.
func (r *Reporter) RegistrationError(err error, name string) {
	r.log.Error("macro registration failed",
		slog.String("macro", name),
		slog.Any("error", err),
	)
}

func callAttrs(call *Call) []slog.Attr {
	if call == nil {
		return nil
	}

	return []slog.Attr{
		slog.String("macro", call.Name),
		slog.String("raw", call.RawWithBraces),
		slog.Group("range",
			slog.Int("start", call.Range.Start),
			slog.Int("end", call.Range.End),
		),
	}
}
