package builtin

import (
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/chatframe/mex/macro"
)

var utcOffsetPattern = regexp.MustCompile(`^UTC([-+]\d{1,2})$`)

// registerTime installs the time and date macros.
func registerTime(reg *macro.Registry, o *Options) error {
	now := o.Now

	err := reg.Register("time", macro.Spec{
		Category: macro.CategoryState,
		Args: []macro.ArgDef{{
			Name:        "offset",
			Type:        macro.TypeString,
			Optional:    true,
			Sample:      "UTC+2",
			Description: "Optional UTC offset, e.g. UTC-5.",
		}},
		Description: "Current time, optionally shifted to a UTC offset.",
		Source:      macro.SourceBuiltin,
		Handler: func(ctx macro.Ctx) (any, error) {
			t := now()

			if offset := ctx.Unnamed[0]; offset != "" {
				loc, err := parseUTCOffset(offset)
				if err != nil {
					return nil, err
				}

				t = t.In(loc)
			}

			return t.Format(time.Kitchen), nil
		},
	})
	if err != nil {
		return err
	}

	simple := []struct {
		name   string
		desc   string
		layout string
	}{
		{name: "date", desc: "Current date.", layout: "January 2, 2006"},
		{name: "weekday", desc: "Current weekday.", layout: "Monday"},
		{name: "isotime", desc: "Current time, ISO 8601.", layout: "15:04:05"},
		{name: "isodate", desc: "Current date, ISO 8601.", layout: time.DateOnly},
	}

	for _, s := range simple {
		layout := s.layout

		err := reg.Register(s.name, macro.Spec{
			Category:    macro.CategoryState,
			Description: s.desc,
			Source:      macro.SourceBuiltin,
			Handler: func(macro.Ctx) (any, error) {
				return now().Format(layout), nil
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// parseUTCOffset converts "UTC±N" to a fixed-offset location.
func parseUTCOffset(s string) (*time.Location, error) {
	m := utcOffsetPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, macro.RuntimeErrorf("invalid UTC offset",
			slog.String("offset", s))
	}

	hours, err := strconv.Atoi(m[1])
	if err != nil || hours < -12 || hours > 14 {
		return nil, macro.RuntimeErrorf("UTC offset out of range",
			slog.String("offset", s))
	}

	return time.FixedZone(s, hours*3600), nil
}
