package refmatch

import "testing"

func TestMatcher_Passes(t *testing.T) {
	tests := []struct {
		name      string
		whitelist []string
		blacklist []string
		ref       string
		want      bool
	}{
		{"empty whitelist accepts all not blacklisted", nil, nil, "main", true},
		{"exact blacklist rejects", nil, []string{"main"}, "main", false},
		{"blacklist wins over whitelist", []string{"main"}, []string{"main"}, "main", false},
		{"regex whitelist", []string{"rx:release/.*"}, nil, "release/1", true},
		{"regex whitelist anchored", []string{"rx:release/.*"}, nil, "xrelease/1y", false},
		{"regex blacklist precedence", []string{"rx:release/.*"}, []string{"release/legacy"}, "release/legacy", false},
		{"not in whitelist", []string{"main"}, nil, "dev", false},
		{"whitespace entries ignored", []string{"  ", ""}, nil, "anything", true},
		{"empty string never matches literal", []string{""}, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.whitelist, tt.blacklist)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if got := m.Passes(tt.ref); got != tt.want {
				t.Errorf("Passes(%q) = %v, want %v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestCompile_invalidRegex(t *testing.T) {
	if _, err := Compile([]string{"rx:("}); err == nil {
		t.Error("expected error for invalid regex")
	}
}

func TestCompile_dropsEmptyEntries(t *testing.T) {
	list, err := Compile([]string{"", "  ", "main"})
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 entry after dropping empties, got %d", len(list))
	}
}
