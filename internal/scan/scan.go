// Package scan is the Parser & Import Extractor (spec.md §4.2): it walks a
// tree-sitter syntax tree and emits ImportEdge-shaped records for every
// import-bearing construct, then discards the tree.
package scan

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/mamaar/scopetest/internal/depgraph"
)

// ImportRef is one extracted import, prior to resolution.
type ImportRef struct {
	Specifier    string
	Kind         depgraph.EdgeKind
	Span         [2]uint32
	Unresolvable bool // true when the require()/import() argument isn't a
	// string literal, so no specifier could be statically extracted.
}

// Result is what ExtractImports produces for one file.
type Result struct {
	Imports      []ImportRef
	SyntaxErr    bool
	IsPureBarrel bool
}

func languageFor(path string) *sitter.Language {
	switch {
	case strings.HasSuffix(path, ".tsx"):
		return tsx.GetLanguage()
	case strings.HasSuffix(path, ".ts"), strings.HasSuffix(path, ".mts"), strings.HasSuffix(path, ".cts"):
		return typescript.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// ExtractImports parses content as the language implied by path's extension
// and returns every import-bearing construct spec.md §4.2 names.
func ExtractImports(ctx context.Context, content []byte, path string) (Result, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(languageFor(path))

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return Result{}, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return Result{SyntaxErr: true}, nil
	}

	res := Result{SyntaxErr: root.HasError()}
	walkTop(root, content, &res)
	return res, nil
}

// walkTop visits every top-level statement, extracting imports and
// classifying the file as a pure barrel per SPEC_FULL.md §3.3: every
// statement must be an import, a re-export, or a bare-identifier default
// export, with nothing else present.
func walkTop(root *sitter.Node, content []byte, res *Result) {
	res.IsPureBarrel = true
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "import_statement":
			processImportStatement(child, content, res)
		case "export_statement":
			processExportStatement(child, content, res)
			if !isBarrelExport(child) {
				res.IsPureBarrel = false
			}
		case "lexical_declaration", "variable_declaration":
			processDeclarationForRequire(child, content, res)
			res.IsPureBarrel = false
		case "expression_statement":
			for j := 0; j < int(child.ChildCount()); j++ {
				walkExpression(child.Child(j), content, res)
			}
			res.IsPureBarrel = false
		case "comment", ";", "\n":
			// blank/comment lines don't disqualify a barrel.
		default:
			res.IsPureBarrel = false
		}
	}
}

// isBarrelExport reports whether an export_statement is transparent: a
// re-export from another module, or `export default <identifier>`. A
// statement carrying its own declaration (function, class, const, etc.)
// disqualifies the file as a barrel.
func isBarrelExport(node *sitter.Node) bool {
	hasSource := false
	hasDefault := false
	hasBareIdentifier := false
	hasOwnDeclaration := false

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "string":
			hasSource = true
		case "default":
			hasDefault = true
		case "identifier":
			hasBareIdentifier = true
		case "function_declaration", "generator_function_declaration", "class_declaration",
			"lexical_declaration", "variable_declaration", "interface_declaration",
			"type_alias_declaration", "enum_declaration":
			hasOwnDeclaration = true
		}
	}

	if hasOwnDeclaration {
		return false
	}
	if hasSource {
		return true
	}
	if hasDefault {
		return hasBareIdentifier
	}
	// A bare `export { a, b }` with no source and no declaration forwards
	// bindings already brought in by an import.
	return true
}

func processImportStatement(node *sitter.Node, content []byte, res *Result) {
	typeOnly := false
	var source *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import":
			continue
		case "type":
			typeOnly = true
		case "string":
			source = child
		}
	}
	if source == nil {
		return
	}
	kind := depgraph.Static
	if typeOnly {
		kind = depgraph.TypeOnly
	}
	appendImport(res, source, content, kind)
}

func processExportStatement(node *sitter.Node, content []byte, res *Result) {
	hasSource := false
	isStar := false
	var source *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "string":
			source = child
			hasSource = true
		case "*":
			isStar = true
		}
	}
	if !hasSource || source == nil {
		return
	}
	kind := depgraph.ReExportNamed
	if isStar {
		kind = depgraph.ReExportAll
	}
	appendImport(res, source, content, kind)
}

// processDeclarationForRequire handles `const x = require('y')` forms,
// which tree-sitter parses as a lexical/variable declaration.
func processDeclarationForRequire(node *sitter.Node, content []byte, res *Result) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			walkExpression(child.Child(j), content, res)
		}
	}
}

func walkExpression(node *sitter.Node, content []byte, res *Result) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "call_expression":
		callee := node.ChildByFieldName("function")
		args := node.ChildByFieldName("arguments")
		switch {
		case callee != nil && callee.Type() == "identifier" && nodeText(callee, content) == "require":
			if lit := firstStringArg(args, content); lit != nil {
				appendImport(res, lit, content, depgraph.Require)
			} else if args != nil {
				appendOpaqueImport(res, node, depgraph.Require)
			}
		case callee != nil && callee.Type() == "import":
			if lit := firstStringArg(args, content); lit != nil {
				appendImport(res, lit, content, depgraph.Dynamic)
			} else if args != nil {
				appendOpaqueImport(res, node, depgraph.Dynamic)
			}
		}
		if args != nil {
			for i := 0; i < int(args.ChildCount()); i++ {
				walkExpression(args.Child(i), content, res)
			}
		}
	case "await_expression":
		walkExpression(node.NamedChild(0), content, res)
	}
}

func firstStringArg(args *sitter.Node, content []byte) *sitter.Node {
	if args == nil {
		return nil
	}
	for i := 0; i < int(args.ChildCount()); i++ {
		child := args.Child(i)
		if child.Type() == "string" {
			return child
		}
	}
	return nil
}

// appendOpaqueImport records a require()/import() call whose argument isn't
// a string literal (a variable, a template with interpolation, a
// computed expression, ...): the specifier can't be known without
// evaluating the program, so per spec.md §4.2 the call still produces an
// edge, just one the resolver can never make Resolved.
func appendOpaqueImport(res *Result, callNode *sitter.Node, kind depgraph.EdgeKind) {
	res.Imports = append(res.Imports, ImportRef{
		Specifier:    "<dynamic>",
		Kind:         kind,
		Span:         [2]uint32{uint32(callNode.StartByte()), uint32(callNode.EndByte())},
		Unresolvable: true,
	})
}

func appendImport(res *Result, stringNode *sitter.Node, content []byte, kind depgraph.EdgeKind) {
	spec := stringContent(stringNode, content)
	if spec == "" {
		return
	}
	res.Imports = append(res.Imports, ImportRef{
		Specifier: spec,
		Kind:      kind,
		Span:      [2]uint32{uint32(stringNode.StartByte()), uint32(stringNode.EndByte())},
	})
}

func stringContent(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "string_fragment" {
			return nodeText(child, content)
		}
	}
	return strings.Trim(nodeText(node, content), `"'`+"`")
}

func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}
