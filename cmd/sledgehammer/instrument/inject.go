// Package instrument - Import injection functionality.
//
// This file adds the imports used by trace statements to rewritten files.
package instrument

import (
	"go/ast"
	"go/token"

	"golang.org/x/tools/go/ast/astutil"
)

// injectImports adds the imports the emitter's calls refer to.
//
// The packages are imported under the emitter's own aliases even when the
// file already imports them, so a user's local variable named fmt or os
// (or an aliased import) cannot capture the calls:
//
//	// Has imports → alias added to the group
//	package main                    package main
//	import "fmt"                    import (
//	                                    "fmt"
//	func main() {}          →           __sledgehammer_fmt_xxxxxxxx "fmt"
//	                                    __sledgehammer_os_xxxxxxxx "os"
//	                                )
//	                                func main() {}
//
// Go allows the same path to be imported twice under different names.
// Imports that are already present with the same alias are not duplicated.
//
// Thread Safety: NOT thread-safe (modifies AST in place).
func injectImports(fset *token.FileSet, file *ast.File, emit *Emitter) {
	astutil.AddNamedImport(fset, file, emit.FmtName, "fmt")
	astutil.AddNamedImport(fset, file, emit.OSName, "os")
}
