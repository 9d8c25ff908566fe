package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// OrgCode records an organization code under the key "org_code".
// An empty code is logged as "none" so that absent tenants stay searchable.
func OrgCode(code string) slog.Attr {
	if code == "" {
		code = "none"
	}
	return slog.String("org_code", code)
}

// Source records how the tenant was resolved under the key "tenant_source".
func Source(source string) slog.Attr {
	return slog.String("tenant_source", source)
}

// Decision records an access decision under the key "decision".
func Decision(decision string) slog.Attr {
	return slog.String("decision", decision)
}

// Reason records a denial reason under the key "reason".
// If reason is empty, it returns an empty Attr.
func Reason(reason string) slog.Attr {
	if reason == "" {
		return slog.Attr{}
	}
	return slog.String("reason", reason)
}

// Bypass records an isolation bypass marker under the key "bypass".
// If bypass is empty, it returns an empty Attr.
func Bypass(bypass string) slog.Attr {
	if bypass == "" {
		return slog.Attr{}
	}
	return slog.String("bypass", bypass)
}

// Phase records a request lifecycle phase under the key "phase".
func Phase(phase string) slog.Attr {
	return slog.String("phase", phase)
}

// Role records a role name under the key "role".
// If role is nil, it returns an empty Attr.
func Role(role any) slog.Attr {
	if role == nil {
		return slog.Attr{}
	}
	return slog.Any("role", role)
}

// RequestID records the request identifier under the key "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
