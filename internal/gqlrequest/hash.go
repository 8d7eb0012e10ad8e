package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// canonicalOperationAndHash re-prints the operation together with exactly the
// fragments it references, in sorted order, so formatting and unused
// fragments do not change the hash.
func canonicalOperationAndHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (string, string, error) {
	if op == nil {
		return "", "", fmt.Errorf("operation is nil")
	}

	defs := []ast.Node{op}
	for _, name := range referencedFragmentNames(op.SelectionSet, fragments) {
		fragment := fragments[name]
		if fragment == nil {
			return "", "", fmt.Errorf("fragment %q not found", name)
		}
		defs = append(defs, fragment)
	}

	printed := printer.Print(ast.NewDocument(&ast.Document{Definitions: defs}))
	canonical, ok := printed.(string)
	if !ok {
		return "", "", fmt.Errorf("unexpected canonical document type %T", printed)
	}
	return canonical, framedSHA256(canonical, effectiveOperationName(op)), nil
}

func referencedFragmentNames(root *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition) []string {
	if root == nil || len(fragments) == 0 {
		return nil
	}

	seen := map[string]bool{}
	var visit func(*ast.SelectionSet)
	visit = func(set *ast.SelectionSet) {
		if set == nil {
			return
		}
		for _, selection := range set.Selections {
			switch sel := selection.(type) {
			case *ast.Field:
				visit(sel.SelectionSet)
			case *ast.InlineFragment:
				visit(sel.SelectionSet)
			case *ast.FragmentSpread:
				if sel.Name == nil || sel.Name.Value == "" || seen[sel.Name.Value] {
					continue
				}
				seen[sel.Name.Value] = true
				if fragment := fragments[sel.Name.Value]; fragment != nil {
					visit(fragment.SelectionSet)
				}
			}
		}
	}
	visit(root)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func effectiveOperationName(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}

// framedSHA256 hashes length-prefixed parts so no concatenation of distinct
// inputs can collide.
func framedSHA256(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
