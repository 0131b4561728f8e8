package avatarbuilder

// PoseCount is the number of body poses rendered per avatar.
const PoseCount = 26

// secretPoses may be redirected to secret frames by catalog rules.
var secretPoses = map[int]bool{25: true, 26: true}

// SelectFrame returns the frame id to render for pose. Poses outside the
// secret set render as themselves. For secret poses the first rule whose
// conditions all equal the model's slot values wins; slots a rule does not
// name are unconstrained.
func SelectFrame(pose int, rules []Rule, m Model) int {
	if !secretPoses[pose] {
		return pose
	}
	for _, r := range rules {
		if r.matches(m) {
			return r.Frame
		}
	}
	return pose
}

func (r Rule) matches(m Model) bool {
	for slot, want := range r.Conditions {
		if m.Value(slot) != want {
			return false
		}
	}
	return true
}

// isSecretFrame reports whether frame lies past the regular poses and so
// needs its own action atlas.
func isSecretFrame(frame int) bool {
	return frame > PoseCount
}
