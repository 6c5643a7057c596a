package fixedinstances

// MediaController marks an instance capable of accepting a desired
// play state (play/render), per spec.md §3 SupervisedInstance and §4.2
// InstanceNotCapable gating. It carries no state of its own today; it
// exists as a capability marker so SetInstanceDesiredPlayState can be
// rejected for instances that don't have one, and as a seam for future
// per-instance media bookkeeping (e.g. last known media position).
type MediaController struct{}

func NewMediaController() *MediaController {
	return &MediaController{}
}
