package referee

// State of the referee within a point.
type State int

const (
	StateWaitForServe State = iota
	StateServing
	StatePlay
	StatePause
	StateOutOfFrame
)

func (s State) String() string {
	switch s {
	case StateWaitForServe:
		return "wait_for_serve"
	case StateServing:
		return "serving"
	case StatePlay:
		return "play"
	case StatePause:
		return "pause"
	case StateOutOfFrame:
		return "out_of_frame"
	default:
		return "unknown"
	}
}

// Decision reasons.
const (
	ReasonBounceOnStrikerSide     = "Bounce on striker's side"
	ReasonMultipleBounces         = "Bounced multiple times on the striker's opponent side"
	ReasonServerDoubleBounce      = "Server fault: multiple bounces on the server's side"
	ReasonDroppedNoBounce         = "Fault by striker: ball fell off sideways without a bounce"
	ReasonDroppedAfterBounce      = "Point by striker: ball fell off sideways after a bounce"
	ReasonOutOfFrameNet           = "Out of frame for too long: striker most likely shot the ball into the net"
	ReasonOutOfFrameIntoNet       = "Out of frame for too long: ball was moving into the net"
	ReasonOutOfFrameAudioOnly     = "Out of frame for too long (audio bounce only): strike received no return"
	ReasonOutOfFrameVideoOnly     = "Out of frame for too long (video bounce only): strike received no return"
	ReasonOutOfFrameAudioAndVideo = "Out of frame for too long (audio and video bounce): strike received no return"
	ReasonOutOfFrameNoBounce      = "Out of frame for too long: strike did not bounce"
	ReasonPointAddition           = "On point addition"
	ReasonPointDeduction          = "On point deduction"
)
