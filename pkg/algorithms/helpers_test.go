package algorithms

import (
	"reflect"
	"testing"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
)

func stageIDs(s Stage) []string {
	out := make([]string, len(s.Techniques))
	for i, t := range s.Techniques {
		out[i] = t.ID
	}
	return out
}

func nodeIDs(nodes []*RelatedNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func gapIDs(gaps []Gap) []string {
	out := make([]string, len(gaps))
	for i, g := range gaps {
		out[i] = g.TechniqueID
	}
	return out
}

func assertIDs(t *testing.T, what string, got, want []string) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func assertKind(t *testing.T, err error, want model.ErrorKind) {
	t.Helper()
	if got := model.ErrorKindOf(err); got != want {
		t.Errorf("error kind = %q, want %q (err: %v)", got, want, err)
	}
}
