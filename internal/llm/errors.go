// Package llm provides language-model clients for chapterforge: a primary
// cloud endpoint (Gemini, spoken to through its OpenAI-compatible API) and a
// local Ollama endpoint. Callers branch on the error kind; a quota-exhausted
// error halts the whole batch upstream.
package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failed language-model call.
type ErrorKind string

const (
	// KindQuota indicates the endpoint reported an exhausted quota.
	// Dispatch halts the batch rather than burning budget on doomed attempts.
	KindQuota ErrorKind = "quota"
	// KindTransport indicates a network-level or HTTP-level failure.
	KindTransport ErrorKind = "transport"
	// KindParse indicates the response body could not be decoded.
	KindParse ErrorKind = "parse"
	// KindOther covers everything else the endpoint reported.
	KindOther ErrorKind = "other"
)

// Error is a classified language-model failure.
type Error struct {
	Kind     ErrorKind
	Endpoint string
	Message  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Endpoint, e.Message, e.Kind)
}

// NewError creates a classified error. Quota detection by message substring
// happens in classify; callers that already know the kind use this directly.
func NewError(kind ErrorKind, endpoint, message string) *Error {
	return &Error{Kind: kind, Endpoint: endpoint, Message: message}
}

// classify builds an Error from an endpoint failure message, promoting
// quota-exceeded conditions regardless of the kind the transport suggested.
func classify(kind ErrorKind, endpoint, message string) *Error {
	if strings.Contains(strings.ToLower(message), "quota") {
		kind = KindQuota
	}
	return &Error{Kind: kind, Endpoint: endpoint, Message: message}
}

// KindOf returns the kind of a language-model error, or KindOther for
// unclassified errors. Returns empty string for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return KindOther
}

// IsQuota reports whether err is a quota-exhausted condition.
func IsQuota(err error) bool {
	return KindOf(err) == KindQuota
}
