package errors

import (
	"encoding/json"
	stderrors "errors"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

// TestErrorCodesAreUnique parses the current package's source files,
// finds all vars initialized with an Error{...} composite literal,
// pulls out the Code field, and fails if there are duplicates.
func TestErrorCodesAreUnique(t *testing.T) {
	// package-level vars can't be listed through reflection
	fset := token.NewFileSet()

	// Parse all non-test .go files in this directory
	pkgs, err := parser.ParseDir(fset, ".", func(info fs.FileInfo) bool {
		name := info.Name()
		return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
	}, 0)
	if err != nil {
		t.Fatalf("parse dir: %v", err)
	}

	// Find the current package (named "errors")
	pkg, ok := pkgs["errors"]
	if !ok {
		t.Fatalf("package 'errors' not found; got: %v", keys(pkgs))
	}

	type occ struct {
		varName string
		pos     token.Position
	}
	byCode := map[int][]occ{}

	for _, f := range pkg.Files {
		ast.Inspect(f, func(n ast.Node) bool {
			gd, ok := n.(*ast.GenDecl)
			if !ok || gd.Tok != token.VAR {
				return true
			}

			for _, spec := range gd.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				// We expect Name = Value pairs.
				for i, name := range vs.Names {
					if i >= len(vs.Values) {
						continue
					}
					cl, ok := vs.Values[i].(*ast.CompositeLit)
					if !ok {
						continue
					}
					// Only consider composite literals of type Error (or pkg-qualified ...Error)
					if !isErrorComposite(cl) {
						continue
					}

					// Find Code: <int> inside the literal.
					if code, ok := extractCodeField(cl); ok {
						byCode[code] = append(byCode[code], occ{
							varName: name.Name,
							pos:     fset.Position(name.Pos()),
						})
					}
				}
			}
			return true
		})
	}

	var dups []string
	for code, occs := range byCode {
		if len(occs) > 1 {
			var refs []string
			for _, o := range occs {
				refs = append(refs, o.varName+"@"+o.pos.String())
			}
			dups = append(dups, strconv.Itoa(code)+": "+strings.Join(refs, ", "))
		}
	}
	if len(dups) > 0 {
		t.Fatalf("duplicate Error.Code values found:\n  %s", strings.Join(dups, "\n  "))
	}
}

// isErrorComposite returns true if the composite literal's type is named "Error"
// (either unqualified or selector-qualified, e.g., errors.Error).
func isErrorComposite(cl *ast.CompositeLit) bool {
	switch t := cl.Type.(type) {
	case *ast.Ident:
		return t.Name == "Error"
	case *ast.SelectorExpr:
		// e.g., somepkg.Error
		return t.Sel.Name == "Error"
	default:
		return false
	}
}

// extractCodeField looks for a "Code: <int>" entry in the composite literal.
func extractCodeField(cl *ast.CompositeLit) (int, bool) {
	for _, elt := range cl.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		keyIdent, ok := kv.Key.(*ast.Ident)
		if !ok || keyIdent.Name != "Code" {
			continue
		}
		if v, ok := kv.Value.(*ast.BasicLit); ok {
			if v.Kind == token.INT {
				// Accept 10, 0x..., with underscores.
				txt := strings.ReplaceAll(v.Value, "_", "")
				n, err := strconv.ParseInt(txt, 0, 32)
				if err == nil {
					return int(n), true
				}
			}
		}
	}
	return 0, false
}

func keys[M ~map[K]V, K comparable, V any](m M) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestErrorWrite(t *testing.T) {
	c := qt.New(t)

	rec := httptest.NewRecorder()
	ErrCardDeclined.With("insufficient funds").WithData(map[string]string{"declineCode": "insufficient_funds"}).Write(rec)
	c.Assert(rec.Code, qt.Equals, http.StatusPaymentRequired)
	c.Assert(rec.Header().Get("Content-Type"), qt.Equals, "application/json")

	var body struct {
		Error string            `json:"error"`
		Code  int               `json:"code"`
		Data  map[string]string `json:"data"`
	}
	c.Assert(json.NewDecoder(rec.Body).Decode(&body), qt.IsNil)
	c.Assert(body.Code, qt.Equals, 40206)
	c.Assert(body.Error, qt.Equals, "card declined: insufficient funds")
	c.Assert(body.Data["declineCode"], qt.Equals, "insufficient_funds")
}

func TestErrorWrapping(t *testing.T) {
	c := qt.New(t)

	base := stderrors.New("boom")
	wrapped := ErrStripeError.WithErr(base)
	c.Assert(wrapped.Code, qt.Equals, ErrStripeError.Code)
	c.Assert(wrapped.HTTPstatus, qt.Equals, ErrStripeError.HTTPstatus)
	c.Assert(wrapped.Error(), qt.Equals, "server error: payment processing failed: boom")
	c.Assert(stderrors.Is(wrapped, ErrStripeError.Err), qt.IsTrue)

	withLevel := ErrPaymentNotFound.WithLogLevel("warn")
	c.Assert(withLevel.LogLevel, qt.Equals, "warn")
	c.Assert(ErrPaymentNotFound.LogLevel, qt.Equals, "")
}
