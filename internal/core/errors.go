package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

var (
	// ErrNoText is returned by ChunkData when the document produced no chunks.
	ErrNoText = errors.New("it seems that the document does not contain any text")

	ErrInvalidTransition = errors.New("operation not allowed in the current state")
	ErrNotReady          = errors.New("vector store is not loaded")
	ErrParamsLocked      = errors.New("chunking parameters cannot change once a file is loaded")
	ErrSessionClosed     = errors.New("session closed")

	// Providers wrap their errors with one of these so callers can tell failures apart.
	ErrTransport = errors.New("model service unreachable")
	ErrAuth      = errors.New("model service rejected the credentials")
	ErrRefused   = errors.New("model refused to answer")
)

func wrapAs(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

// classifyTransport tags network level failures; anything else is returned unchanged.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return wrapAs(ErrTransport, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrapAs(ErrTransport, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return wrapAs(ErrTransport, err)
	}
	return err
}

func classifyStatus(code int, err error) (error, bool) {
	switch {
	case code == 401 || code == 403:
		return wrapAs(ErrAuth, err), true
	case code == 408 || code == 429 || code >= 500:
		return wrapAs(ErrTransport, err), true
	}
	return err, false
}
