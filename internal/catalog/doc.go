// Package catalog resolves node factory keys to port layouts.
//
// Factories are declared in HCL files, one `node` block per factory:
//
//	node "table.filter" {
//	  name = "Row Filter"
//	  input "Input" { types = ["table"] }
//	  output "Output" { types = ["table"] }
//	  setting "pattern" {
//	    type    = string
//	    default = ""
//	  }
//	}
//
// Port groups are fixed unless marked `extendable`. Settings are typed with
// HCL type expressions; factory settings passed as JSON are checked against
// them and completed with the declared defaults. A small catalog is built
// into the binary and used when no catalog directory is configured.
package catalog
