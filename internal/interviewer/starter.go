package interviewer

// starterCode is the per-language editor seed shown when the coding stage
// begins. One table, one owner.
var starterCode = map[string]string{
	"python":     "def solve():\n    # your solution here\n    pass\n",
	"javascript": "function solve() {\n  // your solution here\n}\n",
	"typescript": "function solve(): void {\n  // your solution here\n}\n",
	"go":         "package main\n\nfunc solve() {\n\t// your solution here\n}\n",
	"java":       "class Solution {\n    void solve() {\n        // your solution here\n    }\n}\n",
	"cpp":        "#include <bits/stdc++.h>\n\nvoid solve() {\n    // your solution here\n}\n",
}

// StarterFor returns the starter snippet for a language, defaulting to
// python for unknown languages.
func StarterFor(language string) string {
	if code, ok := starterCode[language]; ok {
		return code
	}
	return starterCode["python"]
}
