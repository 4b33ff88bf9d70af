package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassifyGeminiError(t *testing.T) {
	cases := map[string]struct {
		err  error
		want error
	}{
		"http 401":         {&googleapi.Error{Code: 401, Message: "unauthenticated"}, ErrAuth},
		"http 403":         {&googleapi.Error{Code: 403, Message: "forbidden"}, ErrAuth},
		"http 503":         {&googleapi.Error{Code: 503, Message: "overloaded"}, ErrTransport},
		"http 429":         {&googleapi.Error{Code: 429, Message: "quota"}, ErrTransport},
		"grpc auth":        {status.Error(codes.Unauthenticated, "no key"), ErrAuth},
		"grpc unavailable": {status.Error(codes.Unavailable, "down"), ErrTransport},
		"blocked":          {&genai.BlockedError{}, ErrRefused},
		"deadline":         {fmt.Errorf("call: %w", context.DeadlineExceeded), ErrTransport},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, classifyGeminiError(c.err), c.want)
		})
	}
}

func TestClassifyGeminiErrorLeavesOthersAlone(t *testing.T) {
	plain := errors.New("invalid argument")
	got := classifyGeminiError(plain)
	assert.Same(t, plain, got)

	bad := &googleapi.Error{Code: 400, Message: "bad request"}
	got = classifyGeminiError(bad)
	assert.False(t, errors.Is(got, ErrAuth))
	assert.False(t, errors.Is(got, ErrTransport))
}
