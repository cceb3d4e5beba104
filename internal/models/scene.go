package models

import (
	"fmt"
	"image"
)

// ErrorKind classifies why a scene request produced no image.
type ErrorKind int

const (
	// KindTransport is a connection, send or receive failure at the network layer.
	KindTransport ErrorKind = iota + 1
	// KindProtocol is a successful exchange whose body is not valid JSON or lacks data.image.
	KindProtocol
	// KindApplication is a well-formed response signalling a server-side failure.
	KindApplication
	// KindCache is a download or decode failure after a scene URL was obtained.
	KindCache
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindApplication:
		return "application"
	case KindCache:
		return "cache"
	default:
		return "unknown"
	}
}

// SceneError describes a failed scene request.
type SceneError struct {
	Kind ErrorKind
	// Stage names the network step that failed for transport errors ("connect", "send request", ...).
	Stage string
	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int
	// Code is the OS error number behind a transport failure, zero when unknown.
	Code int
	// Message is the human-readable text shown to the reader.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *SceneError) Error() string {
	return e.Message
}

func (e *SceneError) Unwrap() error {
	return e.Err
}

// SceneResult is the outcome of one scene request. Exactly one of ImageURL and Err is set.
// Chunk is the frame text that triggered the request and is the correlation key.
type SceneResult struct {
	Chunk     string
	RequestID string
	ImageURL  string
	Err       *SceneError
}

// OK reports whether the request produced an image URL.
func (r SceneResult) OK() bool {
	return r.Err == nil && r.ImageURL != ""
}

// Artifact is a decoded image owned by the artifact cache. Callers share the same pointer
// for the same URL and must not mutate it.
type Artifact struct {
	URL    string
	Format string
	Image  image.Image
}

func (a *Artifact) String() string {
	b := a.Image.Bounds()
	return fmt.Sprintf("%s (%s %dx%d)", a.URL, a.Format, b.Dx(), b.Dy())
}
