package problem

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// Problem is an RFC7807 Problem Details document with optional extensions.
type Problem struct {
	Detail        *string         `json:"detail,omitempty"`
	InvalidParams *[]InvalidParam `json:"invalidParams,omitempty"`
	Status        int             `json:"status"`
	Title         string          `json:"title"`
	TraceID       *string         `json:"traceId,omitempty"`
	Type          *string         `json:"type,omitempty"`

	// Extensions holds additional non-standard fields.
	Extensions map[string]any `json:"-"`
}

type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type Option func(*Problem)

func New(opts ...Option) *Problem {
	p := &Problem{
		Type:   strPtr("about:blank"),
		Title:  http.StatusText(http.StatusInternalServerError),
		Status: http.StatusInternalServerError,
		Detail: strPtr("unhandled error"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.Type == nil {
		p.Type = strPtr("about:blank")
	}
	if p.Title == "" {
		if t := http.StatusText(p.Status); t != "" {
			p.Title = t
		} else {
			p.Title = "Unknown Error"
		}
	}
	return p
}

func Write(w http.ResponseWriter, p *Problem) {
	if p == nil {
		p = Internal("server error")
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func WithStatus(status int) Option {
	return func(p *Problem) { p.Status = status }
}

func WithTitle(title string) Option {
	return func(p *Problem) { p.Title = title }
}

func WithDetail(detail string) Option {
	return func(p *Problem) { p.Detail = strPtr(detail) }
}

func WithType(typ string) Option {
	return func(p *Problem) { p.Type = strPtr(typ) }
}

func WithTraceID(traceID string) Option {
	return func(p *Problem) { p.TraceID = strPtr(traceID) }
}

// WithTraceContext copies the trace id of the active span, if any.
func WithTraceContext(ctx context.Context) Option {
	return func(p *Problem) {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			p.TraceID = strPtr(sc.TraceID().String())
		}
	}
}

func WithInvalidParam(name, reason string) Option {
	return func(p *Problem) {
		if p.InvalidParams == nil {
			s := []InvalidParam{{Name: name, Reason: reason}}
			p.InvalidParams = &s
			return
		}
		s := append(*p.InvalidParams, InvalidParam{Name: name, Reason: reason})
		p.InvalidParams = &s
	}
}

func WithExtension(key string, value any) Option {
	return func(p *Problem) {
		if p.Extensions == nil {
			p.Extensions = map[string]any{}
		}
		p.Extensions[key] = value
	}
}

func BadRequest(detail string, opts ...Option) *Problem {
	return withStatus(http.StatusBadRequest, detail, opts)
}

func Unauthorized(detail string, opts ...Option) *Problem {
	return withStatus(http.StatusUnauthorized, detail, opts)
}

func PayloadTooLarge(detail string, opts ...Option) *Problem {
	return withStatus(http.StatusRequestEntityTooLarge, detail, opts)
}

func TooManyRequests(detail string, opts ...Option) *Problem {
	return withStatus(http.StatusTooManyRequests, detail, opts)
}

func Internal(detail string, opts ...Option) *Problem {
	return withStatus(http.StatusInternalServerError, detail, opts)
}

func withStatus(status int, detail string, opts []Option) *Problem {
	base := []Option{
		WithTitle(http.StatusText(status)),
		WithStatus(status),
		WithDetail(detail),
	}
	return New(append(base, opts...)...)
}

func strPtr(s string) *string { return &s }

// MarshalJSON merges Extensions into the base Problem object.
func (p Problem) MarshalJSON() ([]byte, error) {
	// alias drops the method set so json.Marshal does not recurse
	type alias Problem
	base, err := json.Marshal(alias(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extensions) == 0 {
		return base, nil
	}
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for k, v := range p.Extensions {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
	return json.Marshal(m)
}
