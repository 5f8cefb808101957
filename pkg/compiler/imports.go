package compiler

import (
	"bytes"
	"strconv"
)

const (
	requireCall = "require("
	importCall  = "import("

	// ImportFunc replaces dynamic import() in compiled code. The runtime
	// passes it to every module factory.
	ImportFunc = "__extbld_import__"
)

// Import is a require("x") or import("x") call found in compiled code.
// Start and End delimit the whole call expression.
type Import struct {
	Spec    string
	Dynamic bool
	Start   int
	End     int
}

// scanImports is a small scanner for the call shapes esbuild emits:
//
//	require("./a")   -> static import
//	import("./b")    -> dynamic import
//
// Calls are only accepted in code position. String, template and regular
// expression literals are skipped along with comments, while code inside a
// template substitution is scanned. A call needs a single string literal
// argument and may not be a member access (x.require(...)) or part of a
// longer identifier.
func scanImports(code []byte) []Import {
	var imports []Import
	// open braces inside each enclosing ${...} substitution
	var subs []int
	for i := 0; i < len(code); i++ {
		switch code[i] {
		case '"', '\'':
			i = skipString(code, i)
		case '`':
			var open bool
			if i, open = skipTemplate(code, i+1); open {
				subs = append(subs, 0)
			}
		case '{':
			if n := len(subs); n > 0 {
				subs[n-1]++
			}
		case '}':
			n := len(subs)
			if n == 0 {
				break
			}
			if subs[n-1] > 0 {
				subs[n-1]--
				break
			}
			subs = subs[:n-1]
			var open bool
			if i, open = skipTemplate(code, i+1); open {
				subs = append(subs, 0)
			}
		case '/':
			switch {
			case i+1 < len(code) && code[i+1] == '/':
				i = skipLine(code, i)
			case i+1 < len(code) && code[i+1] == '*':
				i = skipComment(code, i)
			case regexAllowed(code, i):
				i = skipRegex(code, i)
			}
		case 'r', 'i':
			if imp, ok := matchCall(code, i); ok {
				imports = append(imports, imp)
				i = imp.End - 1
			}
		}
	}
	return imports
}

// matchCall reports whether a require or import call starts at i.
func matchCall(code []byte, i int) (Import, bool) {
	var dynamic bool
	var call string
	switch {
	case bytes.HasPrefix(code[i:], []byte(requireCall)):
		call = requireCall
	case bytes.HasPrefix(code[i:], []byte(importCall)):
		call, dynamic = importCall, true
	default:
		return Import{}, false
	}
	if i > 0 && (isIdent(code[i-1]) || code[i-1] == '.') {
		return Import{}, false
	}

	j := i + len(call)
	if j >= len(code) {
		return Import{}, false
	}
	quote := code[j]
	if quote != '"' && quote != '\'' && quote != '`' {
		return Import{}, false
	}
	end := bytes.IndexByte(code[j+1:], quote)
	if end < 0 {
		return Import{}, false
	}
	spec := code[j+1 : j+1+end]
	closeParen := j + 1 + end + 1
	if closeParen >= len(code) || code[closeParen] != ')' || bytes.ContainsAny(spec, "\n\\") ||
		(quote == '`' && bytes.Contains(spec, []byte("${"))) {
		return Import{}, false
	}
	return Import{
		Spec:    string(spec),
		Dynamic: dynamic,
		Start:   i,
		End:     closeParen + 1,
	}, true
}

// skipString returns the index of the quote closing the string opened at i.
func skipString(code []byte, i int) int {
	quote := code[i]
	for j := i + 1; j < len(code); j++ {
		switch code[j] {
		case '\\':
			j++
		case quote, '\n':
			return j
		}
	}
	return len(code) - 1
}

// skipTemplate scans template text starting at j. It returns the index of
// the closing backtick, or of the brace opening a substitution with open set.
func skipTemplate(code []byte, j int) (int, bool) {
	for ; j < len(code); j++ {
		switch code[j] {
		case '\\':
			j++
		case '`':
			return j, false
		case '$':
			if j+1 < len(code) && code[j+1] == '{' {
				return j + 1, true
			}
		}
	}
	return len(code) - 1, false
}

func skipLine(code []byte, i int) int {
	if n := bytes.IndexByte(code[i:], '\n'); n >= 0 {
		return i + n
	}
	return len(code) - 1
}

func skipComment(code []byte, i int) int {
	if n := bytes.Index(code[i+2:], []byte("*/")); n >= 0 {
		return i + 2 + n + 1
	}
	return len(code) - 1
}

// skipRegex returns the index of the slash closing the regular expression
// opened at i. Slashes inside a character class do not close it. If the line
// ends first, the slash at i was a division.
func skipRegex(code []byte, i int) int {
	class := false
	for j := i + 1; j < len(code); j++ {
		switch code[j] {
		case '\\':
			j++
		case '[':
			class = true
		case ']':
			class = false
		case '/':
			if !class {
				return j
			}
		case '\n':
			return i
		}
	}
	return i
}

var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// regexAllowed reports whether a slash at i starts a regular expression
// rather than a division, judged by the token before it.
func regexAllowed(code []byte, i int) bool {
	k := i - 1
	for k >= 0 && (code[k] == ' ' || code[k] == '\t' || code[k] == '\n' || code[k] == '\r') {
		k--
	}
	if k < 0 {
		return true
	}
	switch c := code[k]; {
	case isIdent(c):
		s := k
		for s > 0 && isIdent(code[s-1]) {
			s--
		}
		return regexKeywords[string(code[s:k+1])]
	case c == ')' || c == ']' || c == '}' || c == '"' || c == '\'' || c == '`':
		return false
	}
	return true
}

func isIdent(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// rewriteImports resolves every import in code and rewrites the call to use
// the module id. Dynamic imports become calls to ImportFunc.
func rewriteImports(code []byte, resolve func(spec string) (string, error)) (out []byte, static, dynamic []string, err error) {
	imports := scanImports(code)
	if len(imports) == 0 {
		return code, nil, nil, nil
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(code)+len(imports)*16))
	last := 0
	for _, imp := range imports {
		id, err := resolve(imp.Spec)
		if err != nil {
			return nil, nil, nil, err
		}
		buf.Write(code[last:imp.Start])
		if imp.Dynamic {
			buf.WriteString(ImportFunc + "(")
			dynamic = appendUnique(dynamic, id)
		} else {
			buf.WriteString(requireCall)
			static = appendUnique(static, id)
		}
		buf.WriteString(strconv.Quote(id))
		buf.WriteByte(')')
		last = imp.End
	}
	buf.Write(code[last:])
	return buf.Bytes(), static, dynamic, nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
