package linter

import (
	"fmt"

	"github.com/rendis/joblint/pkg/schema"
)

func (v *Verifier) verifyStages(stages schema.Value) {
	if stages.Kind() != schema.KindSequence {
		v.status.Error("Stages is not defined as an Array.")
	}
	if stages.IsEmpty() {
		v.status.Warning("Stages is defined but empty?")
	}

	for _, stage := range members(stages) {
		v.verifyStage(stage)
	}
}

func (v *Verifier) verifyStage(stage schema.Value) {
	if stage.Kind() != schema.KindMapping {
		v.status.Error("A Stage is defined but is not an Object?")
		return
	}
	if !stage.Has("name") {
		v.status.Error("A Stage is defined without a name.")
		return
	}

	// Recorded before any further check so the sequence can still refer to
	// a stage that is otherwise broken.
	nameValue := stage.Get("name")
	if s, ok := nameValue.Str(); ok {
		v.adHocStages[s] = struct{}{}
	}
	name := nameValue.String()

	if stage.Len() == 1 {
		v.status.Error(fmt.Sprintf("The Stage '%s' is defined but empty.", name))
	}

	if !stage.Has("steps") {
		v.status.Error(fmt.Sprintf("The Stage '%s' does not define any Steps.", name))
		return
	}
	if stage.Get("steps").IsEmpty() {
		v.status.Error(fmt.Sprintf("The Stage '%s' defines an empty set of Steps.", name))
	}

	if !stage.Has("version") {
		v.status.Warning(fmt.Sprintf("No version is given for the Stage '%s'. "+
			"The default of 1.0.0 will be used.", name))
	}
}
