package security

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text untouched", "hello world", "hello world"},
		{"angle brackets", "<script>alert(1)</script>", "&lt;script&gt;alert(1)&lt;&#x2F;script&gt;"},
		{"double quote", `say "hi"`, "say &quot;hi&quot;"},
		{"single quote", "it's", "it&#x27;s"},
		{"forward slash", "a/b/c", "a&#x2F;b&#x2F;c"},
		{"mixed", `<a href="/x">'hi'</a>`, "&lt;a href=&quot;&#x2F;x&quot;&gt;&#x27;hi&#x27;&lt;&#x2F;a&gt;"},
		{"unicode preserved", "héllo wörld", "héllo wörld"},
		{"ampersand untouched", "a&b", "a&b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeOutputHasNoRawMetacharacters(t *testing.T) {
	inputs := []string{
		"<>\"'/",
		`<img src=x onerror="alert('x')">`,
		"//comment",
	}
	for _, input := range inputs {
		got := Sanitize(input)
		if strings.ContainsAny(got, `<>"'/`) {
			t.Errorf("Sanitize(%q) = %q, still contains a raw metacharacter", input, got)
		}
	}
}

func TestSanitizeMonotonic(t *testing.T) {
	// Double application must still leave no raw metacharacters.
	inputs := []string{"<b>", `"quoted"`, "path/to/'x'"}
	for _, input := range inputs {
		twice := Sanitize(Sanitize(input))
		if strings.ContainsAny(twice, `<>"'/`) {
			t.Errorf("Sanitize(Sanitize(%q)) = %q, contains a raw metacharacter", input, twice)
		}
	}
}
