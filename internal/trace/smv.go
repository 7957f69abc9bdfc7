package trace

import (
	"regexp"
	"strconv"
	"strings"
)

// LoopMarkerText is printed by NuSMV before the state that begins the loop
const LoopMarkerText = "-- Loop starts here"

var stateHeaderPattern = regexp.MustCompile(`^\s*->\s+State:\s+(\d+)\.(\d+)\s+<-`)

// SMVClassifier classifies lines of a sparse-diff trace
type SMVClassifier struct{}

// Classify implements Classifier
func (SMVClassifier) Classify(line string) Event {
	trimmed := strings.TrimSpace(line)

	if strings.Contains(trimmed, LoopMarkerText) {
		return CycleMarker{}
	}

	if m := stateHeaderPattern.FindStringSubmatch(trimmed); m != nil {
		example, errE := strconv.Atoi(m[1])
		step, errS := strconv.Atoi(m[2])
		if errE == nil && errS == nil {
			return StateHeader{Example: example, Step: step}
		}
		return Noise{Text: line}
	}

	// comments and specification banners contain "--"
	if strings.Contains(trimmed, "--") {
		return Noise{Text: line}
	}
	name, value, ok := strings.Cut(trimmed, "=")
	if !ok {
		return Noise{Text: line}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Noise{Text: line}
	}
	return Diff{Variable: name, Value: strings.TrimSpace(value)}
}
