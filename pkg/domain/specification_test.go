package domain

import "testing"

type item struct{ n int }

func TestSpecificationComposition(t *testing.T) {
	even := SpecFunc[item](func(i *item) bool { return i.n%2 == 0 })
	big := SpecFunc[item](func(i *item) bool { return i.n > 10 })

	tests := []struct {
		name string
		pred Specification[item]
		n    int
		want bool
	}{
		{"all", All[item](), 3, true},
		{"and both", AndSpec[item]{even, big}, 12, true},
		{"and one", AndSpec[item]{even, big}, 4, false},
		{"not", NotSpec[item]{even}, 3, true},
		{"not even", NotSpec[item]{even}, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred.IsSatisfiedBy(&item{tt.n}); got != tt.want {
				t.Errorf("IsSatisfiedBy(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}
