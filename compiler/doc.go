/*

Process of compilation

Program (tagged arrays) ->
	decode ->
Abstract Syntax Tree (ast) ->
	analyze free variables, resolve names (env) ->
	compile ->
Instruction Stream (isa) ->
	format ->
Assembly Text

Every lambda becomes a routine placed before the definitions.
Every value lives on the heap as a tagged object (tags).

*/
package compiler
