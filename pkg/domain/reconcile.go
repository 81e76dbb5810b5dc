package domain

// SceneImageResult is the settled outcome of one scene image request.
type SceneImageResult struct {
	SceneID string
	Image   *ImageRef
	Err     error
}

// OK reports whether the request produced an image.
func (r SceneImageResult) OK() bool {
	return r.Err == nil && !r.Image.IsZero()
}

// ReconcileScenes merges image results into a scene sequence.
//
// The returned slice has the same length and order as scenes. A scene whose id matches a
// successful result gets that image; every other scene passes through unchanged. Results
// for unknown ids and failed results are dropped, so a failure never clears an image.
// Neither input is modified.
func ReconcileScenes(scenes []Scene, results []SceneImageResult) []Scene {
	images := make(map[string]*ImageRef, len(results))
	for _, r := range results {
		if r.OK() {
			images[r.SceneID] = r.Image
		}
	}

	out := make([]Scene, len(scenes))
	copy(out, scenes)
	for i := range out {
		if img, ok := images[out[i].ID]; ok {
			out[i].Image = img
		}
	}
	return out
}
