package sandbox

import (
	"fmt"
	"regexp"

	"github.com/Shopify/go-lua"
)

type form int

const (
	formExpression form = iota
	formDecision
	formReturn
)

type forbiddenPattern struct {
	construct string
	re        *regexp.Regexp
}

func forbid(construct, pattern string) forbiddenPattern {
	return forbiddenPattern{construct: construct, re: regexp.MustCompile(pattern)}
}

// forbiddenPatterns covers Lua entry points and the equivalent constructs
// of scripting hosts users commonly paste code from. String building is
// out too: one concatenation can allocate without bound between two
// instruction hook calls.
var forbiddenPatterns = []forbiddenPattern{
	forbid("module loading", `\brequire\b`),
	forbid("module loading", `\bpackage\s*\.`),
	forbid("module loading", `\bimport\s+`),
	forbid("filesystem access", `\bio\s*\.`),
	forbid("filesystem access", `\bdofile\b`),
	forbid("filesystem access", `\bloadfile\b`),
	forbid("filesystem access", `\bfs\s*\.`),
	forbid("filesystem access", `__dirname|__filename`),
	forbid("process access", `\bos\s*\.`),
	forbid("process access", `\bprocess\s*\.`),
	forbid("process spawning", `\bchild_process\b`),
	forbid("process spawning", `\bpopen\b`),
	forbid("process spawning", `\bexec\s*\(`),
	forbid("global access", `\b_G\b`),
	forbid("global access", `\b_ENV\b`),
	forbid("global access", `\bglobal\s*\.`),
	forbid("global access", `\b[gs]etfenv\b`),
	forbid("global access", `\b[gs]etmetatable\b`),
	forbid("global access", `\bdebug\s*\.`),
	forbid("dynamic code", `\bload\s*\(`),
	forbid("dynamic code", `\bloadstring\b`),
	forbid("dynamic code", `\beval\s*\(`),
	forbid("dynamic code", `\bFunction\s*\(`),
	forbid("dynamic code", `\bstring\s*\.\s*dump\b`),
	forbid("string building", `\.\.`),
	forbid("string building", `\btostring\b`),
	forbid("string building", `\bconcat\b`),
	forbid("timers", `\bsetTimeout\b`),
	forbid("timers", `\bsetInterval\b`),
	forbid("timers", `\bcoroutine\b`),
}

func checkDenylist(code string) (string, bool) {
	for _, p := range forbiddenPatterns {
		if p.re.MatchString(code) {
			return fmt.Sprintf("code contains forbidden construct (%s): %s", p.construct, p.re.String()), false
		}
	}
	return "", true
}

// compileChunk picks the first shape the code parses as: a bare expression,
// a block assigning decision, or a block with its own return. The error of
// the last attempt is reported when none parse.
func compileChunk(code string) (string, form, error) {
	candidates := []struct {
		chunk string
		form  form
	}{
		{chunk: "return " + code, form: formExpression},
		{chunk: code + "\nreturn decision", form: formDecision},
		{chunk: code, form: formReturn},
	}

	var err error
	for _, c := range candidates {
		if err = parses(c.chunk); err == nil {
			return c.chunk, c.form, nil
		}
	}
	return "", 0, fmt.Errorf("syntax error: %w", err)
}

func parses(chunk string) error {
	l := lua.NewState()
	return lua.LoadBuffer(l, chunk, chunkName, "t")
}
