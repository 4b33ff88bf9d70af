package core

import "errors"

// FallbackAnswer is what a user sees when no answer could be produced.
const FallbackAnswer = "Sorry, I don't know."

type AnswerKind string

const (
	KindAnswered       AnswerKind = "answered"
	KindEmptyRetrieval AnswerKind = "empty_retrieval"
	KindTransportError AnswerKind = "transport_error"
	KindAuthError      AnswerKind = "auth_error"
	KindRefused        AnswerKind = "refused"
	KindFailed         AnswerKind = "error"
)

// Answer is the outcome of a query. Text and Sources are set only for KindAnswered.
type Answer struct {
	Kind    AnswerKind
	Text    string
	Sources []ScoredChunk
	Err     error
}

func (a Answer) OK() bool {
	return a.Kind == KindAnswered
}

// Display returns the text to show the user; every non-answer falls back to FallbackAnswer.
func (a Answer) Display() string {
	if a.OK() {
		return a.Text
	}
	return FallbackAnswer
}

// Notice is a short explanation for failures that are not the user's question's fault.
func (a Answer) Notice() string {
	switch a.Kind {
	case KindTransportError:
		return "The model service could not be reached. Try again in a moment."
	case KindAuthError:
		return "The model service rejected the configured credentials."
	case KindRefused:
		return "The model declined to answer this question."
	case KindFailed:
		return "Something went wrong while answering."
	}
	return ""
}

func failedAnswer(err error) Answer {
	kind := KindFailed
	switch {
	case errors.Is(err, ErrAuth):
		kind = KindAuthError
	case errors.Is(err, ErrTransport):
		kind = KindTransportError
	case errors.Is(err, ErrRefused):
		kind = KindRefused
	}
	return Answer{Kind: kind, Err: err}
}
