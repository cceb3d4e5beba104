package models

// ImageReady is delivered when a chunk's scene image has been fetched and decoded.
type ImageReady struct {
	Generation uint64
	Chunk      string
	Artifact   *Artifact
}

// SceneFailed is delivered when a chunk's scene request failed.
type SceneFailed struct {
	Generation uint64
	Chunk      string
	RequestID  string
	Err        *SceneError
}

// SceneEvent is either an ImageReady or a SceneFailed. Exactly one field is non-nil.
type SceneEvent struct {
	Ready  *ImageReady
	Failed *SceneFailed
}

// Generation returns the session generation the event belongs to.
func (e SceneEvent) Generation() uint64 {
	if e.Ready != nil {
		return e.Ready.Generation
	}
	if e.Failed != nil {
		return e.Failed.Generation
	}
	return 0
}

// Chunk returns the frame text the event correlates with.
func (e SceneEvent) Chunk() string {
	if e.Ready != nil {
		return e.Ready.Chunk
	}
	if e.Failed != nil {
		return e.Failed.Chunk
	}
	return ""
}
