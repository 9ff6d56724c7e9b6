// Package device declares the media capture collaborators the chat engine
// depends on. Real capture hardware lives behind these interfaces; the engine
// only sees permission outcomes and artifact references.
package device

import "context"

// AudioRecorder captures audio into an opaque artifact reference. Permission
// must be requested before Start; a denial leaves the recorder untouched.
type AudioRecorder interface {
	RequestPermission(ctx context.Context) error
	Start(ctx context.Context) error
	// Stop finalizes the capture and returns the artifact reference.
	Stop(ctx context.Context) (string, error)
	// Discard throws the in-progress capture away.
	Discard(ctx context.Context) error
}

// ImagePicker obtains an image reference from the library or the camera.
// An empty reference with a nil error means the user cancelled the picker.
type ImagePicker interface {
	RequestPermission(ctx context.Context, source ImageSource) error
	Pick(ctx context.Context, source ImageSource) (string, error)
}

// ImageSource selects where an image comes from.
type ImageSource string

const (
	SourceLibrary ImageSource = "library"
	SourceCamera  ImageSource = "camera"
)
