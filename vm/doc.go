// Package vm implements the rite register virtual machine.
//
// This package contains:
//   - Tagged value representation and heap objects
//   - Classes, modules and method dispatch
//   - The fixed-width instruction encoding and the interpreter loop
//   - The per-interpreter code table of compiled units
//   - The RITE binary format (DumpIrep / ReadIrep)
//   - Builtin classes and the exception hierarchy
package vm
