// Package activation implements the activation pipeline and session
// state machine: the event-queue reducer that turns wake-word scores,
// distance readings, manual commands, vision verdicts and hub
// configuration mutations into session-state transitions.
package activation

// State is the primary session state. Exactly one State is active at
// any time (invariant I2); MUTED is tracked separately as an overlay.
type State int

const (
	StateIdle State = iota
	StateProxVerify
	StateVisionGlance
	StateEngaged
	StateListening
	StateProcessing
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateProxVerify:
		return "PROX_VERIFY"
	case StateVisionGlance:
		return "VISION_GLANCE"
	case StateEngaged:
		return "ENGAGED"
	case StateListening:
		return "LISTENING"
	case StateProcessing:
		return "PROCESSING"
	case StateSpeaking:
		return "SPEAKING"
	default:
		return "UNKNOWN"
	}
}

// TriggerKind tags the TriggerSource variant.
type TriggerKind int

const (
	TriggerWakeWord TriggerKind = iota
	TriggerDistance
	TriggerManual
)

// ManualReason distinguishes manual commands; Wake and Cancel are the
// two the state machine branches on, the rest (mute/volume) are routed
// before a Trigger is ever constructed.
type ManualReason string

const (
	ManualWake   ManualReason = "wake"
	ManualCancel ManualReason = "cancel"
)

// TriggerSource is the tagged union {WakeWord, Distance, Manual} from
// spec.md §3.
type TriggerSource struct {
	Kind TriggerKind

	// WakeWord fields.
	ModelID string
	Score   float64

	// Distance fields.
	DistanceMM int

	// Manual fields.
	Reason ManualReason
}

func WakeWordTrigger(modelID string, score float64) TriggerSource {
	return TriggerSource{Kind: TriggerWakeWord, ModelID: modelID, Score: score}
}

func DistanceTrigger(mm int) TriggerSource {
	return TriggerSource{Kind: TriggerDistance, DistanceMM: mm}
}

func ManualTrigger(reason ManualReason) TriggerSource {
	return TriggerSource{Kind: TriggerManual, Reason: reason}
}

// triggerPriority implements the §4.4 tie-break: Manual > WakeWord >
// Distance, lower value sorts first.
func (t TriggerSource) priority() int {
	switch t.Kind {
	case TriggerManual:
		return 0
	case TriggerWakeWord:
		return 1
	case TriggerDistance:
		return 2
	default:
		return 3
	}
}

// AttentionKind tags the AttentionVerdict variant.
type AttentionKind int

const (
	AttentionFaceToward AttentionKind = iota
	AttentionFaceAway
	AttentionNoFace
	AttentionError
)

// AttentionVerdict is the tagged union {FaceToward, FaceAway, NoFace,
// Error} from spec.md §3.
type AttentionVerdict struct {
	Kind       AttentionKind
	Confidence float64
	Message    string
}

func FaceToward(confidence float64) AttentionVerdict {
	return AttentionVerdict{Kind: AttentionFaceToward, Confidence: confidence}
}

func FaceAway() AttentionVerdict { return AttentionVerdict{Kind: AttentionFaceAway} }
func NoFace() AttentionVerdict   { return AttentionVerdict{Kind: AttentionNoFace} }

func VerdictError(msg string) AttentionVerdict {
	return AttentionVerdict{Kind: AttentionError, Message: msg}
}

// AttentionLabel renders the verdict for sensor.last_attention_state
// (SPEC_FULL.md §3's AttentionState).
func (v AttentionVerdict) AttentionLabel() string {
	switch v.Kind {
	case AttentionFaceToward:
		return "FACE_TOWARD"
	case AttentionFaceAway:
		return "FACE_AWAY"
	case AttentionNoFace:
		return "NO_FACE"
	case AttentionError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
