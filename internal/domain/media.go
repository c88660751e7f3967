package domain

// MediaState is what a peer currently shares: camera, microphone, screen.
type MediaState struct {
	Video  bool `json:"video"`
	Audio  bool `json:"audio"`
	Screen bool `json:"screen"`
}

// MediaPatch is a partial media-state update. Nil fields keep their
// previous values, so clients can toggle a single track without knowing
// the rest of the state.
type MediaPatch struct {
	Video  *bool `json:"video,omitempty"`
	Audio  *bool `json:"audio,omitempty"`
	Screen *bool `json:"screen,omitempty"`
}

// Apply merges the patch into s and returns the result.
func (p MediaPatch) Apply(s MediaState) MediaState {
	if p.Video != nil {
		s.Video = *p.Video
	}
	if p.Audio != nil {
		s.Audio = *p.Audio
	}
	if p.Screen != nil {
		s.Screen = *p.Screen
	}
	return s
}

// Empty reports whether the patch changes nothing.
func (p MediaPatch) Empty() bool {
	return p.Video == nil && p.Audio == nil && p.Screen == nil
}
