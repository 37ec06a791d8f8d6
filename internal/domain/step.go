package domain

// Step is a fine-grained checkpoint inside a job's fixed step sequence. A
// step name is persisted only once the stage behind it has fully committed
// its output, so the stored value always names completed work.
type Step string

const (
	StepQueued          Step = "queued"
	StepInputUploaded   Step = "input_uploaded"
	StepInputsUploaded  Step = "inputs_uploaded"
	StepBGRemoved       Step = "bg_removed"
	StepSceneDone       Step = "scene_done"
	StepScriptDone      Step = "script_done"
	StepTranslateDone   Step = "translate_done"
	StepTTSDone         Step = "tts_done"
	StepClipsDone       Step = "clips_done"
	StepAvatarVideoDone Step = "avatar_video_done"
	StepDone            Step = "done"
)

var stepSequences = map[JobType][]Step{
	JobTypeShortVideo: {
		StepQueued,
		StepInputUploaded,
		StepBGRemoved,
		StepSceneDone,
		StepScriptDone,
		StepTranslateDone,
		StepTTSDone,
		StepClipsDone,
		StepDone,
	},
	JobTypeAvatarVideo: {
		StepQueued,
		StepScriptDone,
		StepAvatarVideoDone,
		StepDone,
	},
	JobTypeWearableTryOn: {
		StepQueued,
		StepInputsUploaded,
		StepDone,
	},
	JobTypeProduct3D: {
		StepQueued,
		StepInputUploaded,
		StepDone,
	},
}

// StepsFor returns the ordered checkpoint sequence for a job type. The
// returned slice must not be mutated.
func StepsFor(t JobType) []Step {
	return stepSequences[t]
}

// StepIndex returns the position of step within the job type's sequence, or
// -1 when the step does not belong to it.
func StepIndex(t JobType, step Step) int {
	for i, s := range stepSequences[t] {
		if s == step {
			return i
		}
	}
	return -1
}

// ValidStep reports whether step is a checkpoint of the given job type.
func ValidStep(t JobType, step Step) bool {
	return StepIndex(t, step) >= 0
}
