package pathguard

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// mutatingCommands maps a command name to the argument positions that name
// filesystem write targets. -1 means every non-flag argument, otherwise the
// value selects trailing arguments (1 = last arg only, as for mv/cp).
var mutatingCommands = map[string]int{
	"rm":       -1,
	"rmdir":    -1,
	"mkdir":    -1,
	"touch":    -1,
	"mv":       1,
	"cp":       1,
	"tee":      -1,
	"ln":       1,
	"truncate": -1,
}

// ShellWriteTargets statically extracts the filesystem paths a shell
// command may write to: redirection targets plus the arguments of known
// mutating commands. Unparseable commands return (nil, false) and the
// caller must treat the command as unknown rather than safe.
func ShellWriteTargets(command string) ([]string, bool) {
	parser := syntax.NewParser()
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, false
	}

	var targets []string
	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.Redirect:
			if isWriteRedirect(n.Op) && n.Word != nil {
				if p := literalWord(n.Word); p != "" {
					targets = append(targets, p)
				}
			}
		case *syntax.CallExpr:
			targets = append(targets, callTargets(n)...)
		}
		return true
	})
	return targets, true
}

func isWriteRedirect(op syntax.RedirOperator) bool {
	switch op {
	case syntax.RdrOut, syntax.AppOut, syntax.RdrAll, syntax.AppAll, syntax.ClbOut:
		return true
	}
	return false
}

func callTargets(call *syntax.CallExpr) []string {
	if len(call.Args) == 0 {
		return nil
	}
	name := literalWord(call.Args[0])
	trailing, ok := mutatingCommands[name]
	if !ok {
		return nil
	}

	var args []string
	for _, w := range call.Args[1:] {
		lit := literalWord(w)
		if lit == "" || strings.HasPrefix(lit, "-") {
			continue
		}
		args = append(args, lit)
	}
	if trailing > 0 && len(args) > trailing {
		args = args[len(args)-trailing:]
	}
	return args
}

// literalWord flattens a word made only of literal parts. Words with
// expansions or substitutions return "" so they are never mistaken for a
// checkable path.
func literalWord(w *syntax.Word) string {
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return ""
				}
				sb.WriteString(lit.Value)
			}
		default:
			return ""
		}
	}
	return sb.String()
}
