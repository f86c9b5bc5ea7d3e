package mirror

import "testing"

func TestValidateFilterSpec(t *testing.T) {
	tests := []struct {
		name    string
		tokens  []string
		want    []Directive
		wantErr bool
	}{
		{"empty", nil, nil, true},
		{"prune-empty", []string{"--prune-empty"}, []Directive{{Kind: "prune-empty"}}, false},
		{"setup", []string{"--setup", "rm -rf secrets"}, []Directive{{Kind: "setup", Arg: "rm -rf secrets"}}, false},
		{"setup-missing-arg", []string{"--setup"}, nil, true},
		{"tree-filter", []string{"--tree-filter", "rm -f secrets"}, []Directive{{Kind: "tree-filter", Arg: "rm -f secrets"}}, false},
		{"multiple-directives", []string{"--index-filter", "git rm --cached -qr --ignore-unmatch old", "--prune-empty"},
			[]Directive{{Kind: "index-filter", Arg: "git rm --cached -qr --ignore-unmatch old"}, {Kind: "prune-empty"}}, false},
		{"tag-name-filter-rejected", []string{"--tag-name-filter", "cat"}, nil, true},
		{"no-leading-dashes", []string{"prune-empty"}, nil, true},
		{"bare-dash-dash", []string{"--"}, nil, true},
		{"filter-with-missing-arg", []string{"--msg-filter"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateFilterSpec(tt.tokens)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFilterSpec() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d directives, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("directive %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEngineArgs(t *testing.T) {
	directives := []Directive{
		{Kind: "prune-empty"},
		{Kind: "setup", Arg: "echo hi"},
		{Kind: "tree-filter", Arg: "rm -f secrets"},
	}
	want := []string{"--prune-empty", "--setup", "echo hi", "--tree-filter", "rm -f secrets"}
	got := engineArgs(directives)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, got[i], want[i])
		}
	}
}
